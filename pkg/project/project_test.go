package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDescriptor(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		shouldError bool
		wantEnv     string
	}{
		{
			name: "valid descriptor",
			content: `{
  "repo": "https://github.com/x/demo.git",
  "local_path": "/home/u/.minfy/workspace/demo",
  "app_subdir": ".",
  "current_env": "staging"
}`,
			wantEnv: "staging",
		},
		{
			name:    "missing environment defaults to dev",
			content: `{"repo": "https://github.com/x/demo.git", "local_path": "/tmp/demo", "app_subdir": "web"}`,
			wantEnv: "dev",
		},
		{
			name:        "unknown environment",
			content:     `{"local_path": "/tmp/demo", "current_env": "qa"}`,
			shouldError: true,
		},
		{
			name:        "missing local path",
			content:     `{"repo": "https://github.com/x/demo.git"}`,
			shouldError: true,
		},
		{
			name:        "invalid json",
			content:     `{"repo": `,
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LoadDescriptor(writeFile(t, DescriptorFile, tt.content))
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnv, d.ActiveEnvironment)
		})
	}
}

func TestLoadDescriptorMissingFile(t *testing.T) {
	_, err := LoadDescriptor(filepath.Join(t.TempDir(), DescriptorFile))
	assert.ErrorContains(t, err, "failed to read project file")
}

func TestDescriptorVariables(t *testing.T) {
	d := &Descriptor{
		LocalPath:         "/tmp/demo",
		AppSubdirectory:   "web",
		ActiveEnvironment: "prod",
		Envs: map[string]EnvironmentSettings{
			"dev":  {Vars: map[string]string{"API_URL": "http://localhost"}},
			"prod": {Vars: map[string]string{"API_URL": "https://api.example.com"}},
		},
	}

	vars := d.Variables()
	assert.Equal(t, map[string]string{"API_URL": "https://api.example.com"}, vars)

	vars["EXTRA"] = "1"
	assert.NotContains(t, d.Envs["prod"].Vars, "EXTRA", "Variables must return a copy")
	assert.Equal(t, filepath.Join("/tmp/demo", "web"), d.AppDir())
}

func TestLoadPlan(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		shouldError bool
		wantBuilder BuilderKind
		wantIsolate bool
	}{
		{
			name:        "vite plan",
			content:     `{"builder": "vite", "build_cmd": "npm run build", "output_dir": "dist", "requires_docker": true}`,
			wantBuilder: BuilderVite,
			wantIsolate: true,
		},
		{
			name:        "unknown builder maps to custom",
			content:     `{"builder": "gatsby", "build_cmd": "npm run build", "output_dir": "public"}`,
			wantBuilder: BuilderCustom,
		},
		{
			name:        "uppercase builder",
			content:     `{"builder": "Angular", "build_cmd": "npm run build", "output_dir": "dist/demo"}`,
			wantBuilder: BuilderAngular,
		},
		{
			name:        "next plan without command",
			content:     `{"builder": "next", "output_dir": "out"}`,
			wantBuilder: BuilderNext,
		},
		{
			name:        "missing output dir",
			content:     `{"builder": "cra", "build_cmd": "npm run build"}`,
			shouldError: true,
		},
		{
			name:        "absolute output dir",
			content:     `{"builder": "cra", "build_cmd": "npm run build", "output_dir": "/build"}`,
			shouldError: true,
		},
		{
			name:        "missing build command",
			content:     `{"builder": "cra", "output_dir": "build"}`,
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadPlan(writeFile(t, PlanFile, tt.content))
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBuilder, p.Builder)
			assert.Equal(t, tt.wantIsolate, p.RequiresIsolatedBuild)
		})
	}
}
