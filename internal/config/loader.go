package config

// Precedence order (highest wins):
//   1. CLI flags that were set explicitly
//   2. LINECHAT_* environment variables
//   3. the file given with --config
//   4. defaults (defaults.go)

import (
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LINECHAT_MAX_CLIENTS.
const EnvPrefix = "LINECHAT"

// NewServerViper returns a viper instance carrying the server defaults and
// reading LINECHAT_* environment variables.
func NewServerViper() *viper.Viper {
	v := newViper()
	SetServerDefaults(v)
	return v
}

// NewJoinViper returns a viper instance carrying the client defaults.
func NewJoinViper() *viper.Viper {
	v := newViper()
	SetJoinDefaults(v)
	return v
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges the configuration file at path into v. An empty path is
// not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return oops.
			In("config").
			With("path", path).
			Wrapf(err, "failed to read config file")
	}
	return nil
}

// BindFlags binds every flag of fs to the key of the same name, dashes
// turned into underscores. Flags left at their default do not override
// the environment or the config file.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" || f.Name == "help" {
			return
		}
		if e := v.BindPFlag(KeyFor(f.Name), f); e != nil {
			err = oops.In("config").With("flag", f.Name).Wrapf(e, "failed to bind flag")
		}
	})
	return err
}

// KeyFor returns the configuration key of a flag name.
func KeyFor(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// LoadServer decodes and validates the server configuration held by v.
func LoadServer(v *viper.Viper) (Server, error) {
	var c Server
	if err := v.Unmarshal(&c); err != nil {
		return Server{}, oops.In("config").Wrapf(err, "failed to decode configuration")
	}
	if err := c.Validate(); err != nil {
		return Server{}, err
	}
	return c, nil
}

// LoadJoin decodes and validates the client configuration held by v.
func LoadJoin(v *viper.Viper) (Join, error) {
	port, err := ParsePort(v.GetString("port"))
	if err != nil {
		return Join{}, err
	}
	j := Join{
		Host:      v.GetString("host"),
		Port:      port,
		WebSocket: v.GetBool("websocket"),
		NoColor:   v.GetBool("no_color"),
	}
	if err := j.Validate(); err != nil {
		return Join{}, err
	}
	return j, nil
}
