package dockersetup

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/docker/cli/cli/config"
	"github.com/docker/cli/cli/config/configfile"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/go-connections/sockets"
	"github.com/docker/go-connections/tlsconfig"
	"github.com/spf13/pflag"
)

const (
	// EnvEnableTLS is the name of the environment variable that can be used
	// to enable TLS for client connections. When set to a non-empty value, TLS
	// is enabled for API connections using TCP.
	EnvEnableTLS = "DOCKER_TLS"

	// DefaultCaFile is the default filename for the CA pem file
	DefaultCaFile = "ca.pem"
	// DefaultKeyFile is the default filename for the key pem file
	DefaultKeyFile = "key.pem"
	// DefaultCertFile is the default filename for the cert pem file
	DefaultCertFile = "cert.pem"

	FlagTLSVerify = "docker-tlsverify"
	FlagTLSCert   = "docker-tlscert"
	FlagTLSKey    = "docker-tlskey"
	FlagHost      = "docker-host"

	userAgent = "stackpipe"
)

var (
	dockerCertPath  = os.Getenv(dockerclient.EnvOverrideCertPath)
	dockerTLSVerify = os.Getenv(dockerclient.EnvTLSVerify) != ""
	dockerTLS       = os.Getenv(EnvEnableTLS) != ""
)

// Options configures the docker engine client and the environment passed to the
// compose cli so both talk to the same daemon.
type Options struct {
	Host       string
	TLS        bool
	TLSVerify  bool
	TLSOptions *tlsconfig.Options
	ConfigDir  string
}

func (o *Options) BindFlags(flags *pflag.FlagSet) {
	configDir := config.Dir()
	if dockerCertPath == "" {
		dockerCertPath = configDir
	}

	host := os.Getenv(dockerclient.EnvOverrideHost)
	if host == "" {
		host = dockerclient.DefaultDockerHost
	}

	flags.StringVar(&o.ConfigDir, "docker-config", configDir, "Location of the docker client config, used for registry credentials.")
	flags.BoolVar(&o.TLS, "docker-tls", dockerTLS, "Use TLS; implied by --"+FlagTLSVerify)
	flags.BoolVar(&o.TLSVerify, FlagTLSVerify, dockerTLSVerify, "Use TLS and verify the remote")

	o.TLSOptions = &tlsconfig.Options{
		CAFile:   filepath.Join(dockerCertPath, DefaultCaFile),
		CertFile: filepath.Join(dockerCertPath, DefaultCertFile),
		KeyFile:  filepath.Join(dockerCertPath, DefaultKeyFile),
	}

	tlsOptions := o.TLSOptions
	flags.StringVar(&tlsOptions.CAFile, "docker-tlscacert", tlsOptions.CAFile, "Trust certs signed only by this CA")
	flags.StringVar(&tlsOptions.CertFile, FlagTLSCert, tlsOptions.CertFile, "Path to TLS certificate file")
	flags.StringVar(&tlsOptions.KeyFile, FlagTLSKey, tlsOptions.KeyFile, "Path to TLS key file")
	flags.StringVar(&o.Host, FlagHost, host, "Daemon socket to connect to")
}

// SetDefaultOptions sets default values for options after flag parsing is
// complete.
func (o *Options) SetDefaultOptions(flags *pflag.FlagSet) {
	// Specifying --docker-tlsverify at all turns on TLS, verification depends on the value.
	if flags.Changed(FlagTLSVerify) || o.TLSVerify {
		o.TLS = true
	}

	if !o.TLS {
		o.TLSOptions = nil
		return
	}

	tlsOptions := o.TLSOptions
	tlsOptions.InsecureSkipVerify = !o.TLSVerify

	if !flags.Changed(FlagTLSCert) {
		if _, err := os.Stat(tlsOptions.CertFile); os.IsNotExist(err) {
			tlsOptions.CertFile = ""
		}
	}

	if !flags.Changed(FlagTLSKey) {
		if _, err := os.Stat(tlsOptions.KeyFile); os.IsNotExist(err) {
			tlsOptions.KeyFile = ""
		}
	}
}

func (o *Options) Build() (*dockerclient.Client, error) {
	host := o.Host
	if host == "" {
		host = dockerclient.DefaultDockerHost
	}

	hostURL, err := dockerclient.ParseHostURL(host)
	if err != nil {
		return nil, err
	}

	client, err := o.defaultDockerHTTPClient(hostURL)
	if err != nil {
		return nil, err
	}

	opts := []dockerclient.Opt{
		dockerclient.WithHost(host),
		dockerclient.WithHTTPClient(client),
		dockerclient.WithUserAgent(userAgent),
		dockerclient.WithAPIVersionNegotiation(),
	}

	if o.TLS && o.TLSOptions != nil {
		opts = append(opts, dockerclient.WithTLSClientConfig(o.TLSOptions.CAFile, o.TLSOptions.CertFile, o.TLSOptions.KeyFile))
	}

	return dockerclient.NewClientWithOpts(opts...)
}

// AuthStore loads the registry credentials of the configured docker config dir.
func (o *Options) AuthStore() (*configfile.ConfigFile, error) {
	if o.ConfigDir == "" {
		return config.LoadDefaultConfigFile(io.Discard), nil
	}

	cfg, err := config.Load(o.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load docker config: %w", err)
	}

	return cfg, nil
}

// Environ returns the DOCKER_* variables for child processes like the compose cli.
func (o *Options) Environ() []string {
	var env []string
	if o.Host != "" {
		env = append(env, fmt.Sprintf("%s=%s", dockerclient.EnvOverrideHost, o.Host))
	}

	if o.ConfigDir != "" {
		env = append(env, fmt.Sprintf("DOCKER_CONFIG=%s", o.ConfigDir))
	}

	if o.TLSVerify {
		env = append(env, fmt.Sprintf("%s=1", dockerclient.EnvTLSVerify))
	}

	if o.TLS && o.TLSOptions != nil && o.TLSOptions.CAFile != "" {
		env = append(env, fmt.Sprintf("%s=%s", dockerclient.EnvOverrideCertPath, filepath.Dir(o.TLSOptions.CAFile)))
	}

	return env
}

func (o *Options) defaultDockerHTTPClient(hostURL *url.URL) (*http.Client, error) {
	transport := &http.Transport{}

	if o.TLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: !o.TLSVerify,
		}
	}

	err := sockets.ConfigureTransport(transport, hostURL.Scheme, hostURL.Host)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: dockerclient.CheckRedirect,
	}, nil
}
