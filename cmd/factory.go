package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sorengranfeldt/mre/internal/audit"
	"github.com/sorengranfeldt/mre/internal/config"
	"github.com/sorengranfeldt/mre/internal/logging"
	"github.com/sorengranfeldt/mre/internal/service"
	"github.com/sorengranfeldt/mre/pkg/client"
)

var f = NewFactory()

type Factory struct {
	// RemoteAddr is the address of the MRE debug server to connect to.
	RemoteAddr string

	// Command-specific flags
	RulesPath string // rules document or directory of rules documents
}

func NewFactory() *Factory {
	return &Factory{}
}

// IsRemote reports whether a server address was configured.
func (f *Factory) IsRemote() bool {
	return f.serverAddr() != ""
}

func (f *Factory) serverAddr() string {
	if f.RemoteAddr != "" { // prio 1: command-line flag
		return f.RemoteAddr
	}
	return viper.GetString(ServerAddrKey) // prio 2: config/env
}

// GetClient returns an HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.serverAddr()
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set MRE_ADDR)")
	}
	var opts []client.Option
	if token := viper.GetString("token"); token != "" {
		opts = append(opts, client.WithAuthToken(token))
	}
	return client.New(server, opts...)
}

func (f *Factory) rulesPath() (string, error) {
	path := f.RulesPath
	if path == "" {
		path = viper.GetString(RulesPathKey)
	}
	if path == "" {
		return "", fmt.Errorf("rules not specified (use --rules or set MRE_RULES)")
	}
	return path, nil
}

// LoadRules loads and validates the rules documents. Load warnings go to the
// process log.
func (f *Factory) LoadRules() (*config.Config, error) {
	path, err := f.rulesPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path, logging.NewZLogger(log.Logger))
}

// GetLocalService returns an initialized service that keeps its audit log in
// memory, for local CLI operations.
func (f *Factory) GetLocalService(ctx context.Context) (*service.ProvisioningService, error) {
	path, err := f.rulesPath()
	if err != nil {
		return nil, err
	}
	svc := service.NewProvisioningService(path, service.WithAuditor(audit.NewInMemoryAuditor()))
	if err := svc.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}
	return svc, nil
}

func (f *Factory) bindRulesFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.RulesPath, "rules", "r", "", "Rules document or directory of rules documents")
}
