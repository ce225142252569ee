package util

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/pgschema/pgreconcile/internal/config"
)

func TestSettingsConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		args    []string
		want    func(*config.Config)
		wantErr bool
	}{
		{
			name: "defaults",
			want: func(*config.Config) {},
		},
		{
			name: "environment",
			env:  map[string]string{config.EnvFulltextMethod: "GIST", config.EnvSchemaPrefix: "app_"},
			want: func(c *config.Config) {
				c.FulltextMethod = config.MethodGiST
				c.SchemaPrefix = "app_"
			},
		},
		{
			name: "flags override environment",
			env:  map[string]string{config.EnvSearchLanguage: "german"},
			args: []string{"--search-language", "simple", "--schema", "cms", "--schema-as-database"},
			want: func(c *config.Config) {
				c.SearchLanguage = "simple"
				c.Schema = "cms"
				c.SchemaAsDatabase = true
			},
		},
		{
			name:    "invalid method",
			args:    []string{"--fts-method", "brin"},
			wantErr: true,
		},
		{
			name:    "identifier limit too small",
			args:    []string{"--identifier-limit", "10"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{config.EnvSearchLanguage, config.EnvFulltextMethod, config.EnvIdentifierLimit, config.EnvSchemaAsDatabase, config.EnvSchemaPrefix, config.EnvDialect} {
				t.Setenv(key, tt.env[key])
			}

			var flags SettingsFlags
			cmd := &cobra.Command{Use: "test"}
			AddSettingsFlags(cmd, &flags)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags(%v) error = %v", tt.args, err)
			}

			got, err := flags.Config(cmd)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Config() error = %v; wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			want := config.Default()
			tt.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Config() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
