package external

import (
	"errors"
	"sync/atomic"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"github.com/sorengranfeldt/mre/internal/core"
)

// StubHandlerConfig is the config block of a stub external.
type StubHandlerConfig struct {
	// Fail makes every Provision call return an error.
	Fail bool `mapstructure:"fail"`

	// Message is the error returned when Fail is set.
	Message string `mapstructure:"message"`
}

// StubHandler logs and counts its calls. It is meant for trying out rules
// documents without a real integration.
type StubHandler struct {
	referenceID string
	conf        StubHandlerConfig
	calls       atomic.Int64
}

var _ core.ExternalHandler = (*StubHandler)(nil)

func NewStubHandler(ref core.ExternalRef) (*StubHandler, error) {
	var conf StubHandlerConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &conf,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(ref.Config); err != nil {
		return nil, err
	}
	if conf.Message == "" {
		conf.Message = "stub external configured to fail"
	}
	return &StubHandler{referenceID: ref.ReferenceID, conf: conf}, nil
}

func (s *StubHandler) Provision(subject core.Subject) error {
	s.calls.Add(1)
	log.Info().
		Str("external", s.referenceID).
		Str("subject", subject.UniqueID().String()).
		Str("subject_type", subject.ObjectType()).
		Msg("StubHandler Provision called")
	if s.conf.Fail {
		return errors.New(s.conf.Message)
	}
	return nil
}

func (s *StubHandler) ShouldDelete(core.Connector, core.Subject) (bool, error) {
	return false, core.ErrNotSupported
}

// Calls returns how often Provision was called.
func (s *StubHandler) Calls() int64 {
	return s.calls.Load()
}
