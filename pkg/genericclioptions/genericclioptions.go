package genericclioptions

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/scylladb/cql-schema-metadata/pkg/util/cfgutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	apimachineryutilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// IOStreams is a structure containing all standard streams.
type IOStreams struct {
	// In think, os.Stdin
	In io.Reader
	// Out think, os.Stdout
	Out io.Writer
	// ErrOut think, os.Stderr
	ErrOut io.Writer
}

const configFileFlagName = "config"

// ClientConfig holds the connection settings for a CQL cluster.
// Values come from flags, then from the environment, then from an optional YAML file
// whose keys are the flag names.
type ClientConfig struct {
	ConfigFile string

	Hosts                 []string
	Port                  int
	Username              string
	Password              string
	LocalDC               string
	Consistency           string
	ProtocolVersion       int
	ConnectTimeout        time.Duration
	Timeout               time.Duration
	TLSCAFile             string
	TLSCertFile           string
	TLSKeyFile            string
	TLSInsecureSkipVerify bool

	ClusterConfig *gocql.ClusterConfig

	flags *pflag.FlagSet
}

func NewClientConfig() ClientConfig {
	return ClientConfig{
		Hosts:           []string{"127.0.0.1"},
		Port:            9042,
		Consistency:     gocql.One.String(),
		ProtocolVersion: 4,
		ConnectTimeout:  5 * time.Second,
		Timeout:         10 * time.Second,
	}
}

func (cc *ClientConfig) AddFlags(cmd *cobra.Command) {
	cc.flags = cmd.PersistentFlags()

	cmd.PersistentFlags().StringVarP(&cc.ConfigFile, configFileFlagName, "", cc.ConfigFile, "Path to a YAML file with connection settings keyed by flag name.")
	cmd.PersistentFlags().StringSliceVarP(&cc.Hosts, "hosts", "", cc.Hosts, "Contact points of the cluster.")
	cmd.PersistentFlags().IntVarP(&cc.Port, "port", "", cc.Port, "CQL native transport port.")
	cmd.PersistentFlags().StringVarP(&cc.Username, "username", "", cc.Username, "Username for password authentication.")
	cmd.PersistentFlags().StringVarP(&cc.Password, "password", "", cc.Password, "Password for password authentication.")
	cmd.PersistentFlags().StringVarP(&cc.LocalDC, "local-dc", "", cc.LocalDC, "Prefer coordinators from this datacenter.")
	cmd.PersistentFlags().StringVarP(&cc.Consistency, "consistency", "", cc.Consistency, "Consistency level of system table reads.")
	cmd.PersistentFlags().IntVarP(&cc.ProtocolVersion, "protocol-version", "", cc.ProtocolVersion, "Native protocol version.")
	cmd.PersistentFlags().DurationVarP(&cc.ConnectTimeout, "connect-timeout", "", cc.ConnectTimeout, "Timeout for establishing connections.")
	cmd.PersistentFlags().DurationVarP(&cc.Timeout, "timeout", "", cc.Timeout, "Timeout for a single query.")
	cmd.PersistentFlags().StringVarP(&cc.TLSCAFile, "tls-ca-file", "", cc.TLSCAFile, "Path to the CA bundle used to verify the cluster.")
	cmd.PersistentFlags().StringVarP(&cc.TLSCertFile, "tls-cert-file", "", cc.TLSCertFile, "Path to the client certificate.")
	cmd.PersistentFlags().StringVarP(&cc.TLSKeyFile, "tls-key-file", "", cc.TLSKeyFile, "Path to the client key.")
	cmd.PersistentFlags().BoolVarP(&cc.TLSInsecureSkipVerify, "tls-insecure-skip-verify", "", cc.TLSInsecureSkipVerify, "Don't verify the cluster certificate.")
}

func (cc *ClientConfig) Validate() error {
	var errs []error

	if len(cc.Hosts) == 0 && len(cc.ConfigFile) == 0 {
		errs = append(errs, errors.New("at least one host must be specified"))
	}

	if cc.Port <= 0 || cc.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", cc.Port))
	}

	if _, err := gocql.ParseConsistencyWrapper(cc.Consistency); err != nil {
		errs = append(errs, fmt.Errorf("invalid consistency %q: %w", cc.Consistency, err))
	}

	if cc.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("connect timeout must be positive, got %v", cc.ConnectTimeout))
	}

	if cc.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", cc.Timeout))
	}

	if (len(cc.TLSCertFile) == 0) != (len(cc.TLSKeyFile) == 0) {
		errs = append(errs, errors.New("tls-cert-file and tls-key-file must be set together"))
	}

	return apimachineryutilerrors.NewAggregate(errs)
}

func (cc *ClientConfig) Complete() error {
	if len(cc.ConfigFile) != 0 {
		err := cc.applyConfigFile()
		if err != nil {
			return fmt.Errorf("can't apply config file %q: %w", cc.ConfigFile, err)
		}

		// Values from the file haven't been validated yet.
		err = cc.Validate()
		if err != nil {
			return err
		}

		if len(cc.Hosts) == 0 {
			return errors.New("at least one host must be specified")
		}
	}

	cc.ClusterConfig = cc.NewClusterConfig()

	return nil
}

// NewClusterConfig returns a driver configuration for the current settings.
func (cc *ClientConfig) NewClusterConfig() *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cc.Hosts...)
	cluster.Port = cc.Port
	cluster.ProtoVersion = cc.ProtocolVersion
	cluster.ConnectTimeout = cc.ConnectTimeout
	cluster.Timeout = cc.Timeout
	cluster.ReconnectInterval = 500 * time.Millisecond
	// Validated already.
	cluster.Consistency, _ = gocql.ParseConsistencyWrapper(cc.Consistency)

	if len(cc.Username) != 0 {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cc.Username,
			Password: cc.Password,
		}
	}

	if len(cc.LocalDC) != 0 {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(cc.LocalDC))
	}

	if len(cc.TLSCAFile) != 0 || len(cc.TLSCertFile) != 0 || cc.TLSInsecureSkipVerify {
		cluster.SslOpts = &gocql.SslOptions{
			CaPath:                 cc.TLSCAFile,
			CertPath:               cc.TLSCertFile,
			KeyPath:                cc.TLSKeyFile,
			EnableHostVerification: !cc.TLSInsecureSkipVerify,
		}
	}

	return cluster
}

func (cc *ClientConfig) applyConfigFile() error {
	values := map[string]interface{}{}
	err := cfgutil.ParseYAML(&values, cc.ConfigFile)
	if err != nil {
		return err
	}

	return applyFlagValues(cc.flags, values)
}

// applyFlagValues sets every flag named by a key in values, unless the flag was already set.
func applyFlagValues(flags *pflag.FlagSet, values map[string]interface{}) error {
	if flags == nil {
		return errors.New("flags are not registered")
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		f := flags.Lookup(k)
		if f == nil || k == configFileFlagName {
			errs = append(errs, fmt.Errorf("unknown key %q", k))
			continue
		}

		if f.Changed {
			continue
		}

		var v string
		switch tv := values[k].(type) {
		case []interface{}:
			parts := make([]string, 0, len(tv))
			for _, e := range tv {
				parts = append(parts, fmt.Sprint(e))
			}
			v = strings.Join(parts, ",")
		case nil:
			continue
		default:
			v = fmt.Sprint(tv)
		}

		err := flags.Set(k, v)
		if err != nil {
			errs = append(errs, fmt.Errorf("can't set %q to %q: %w", k, v, err))
		}
	}

	return apimachineryutilerrors.NewAggregate(errs)
}
