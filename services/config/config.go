package config

import (
	"encoding/json"

	"einkcode-go/bus"
	"einkcode-go/errcode"
	"einkcode-go/services/store"
	"einkcode-go/x/logx"
)

// -----------------------------------------------------------------------------
// String constants
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
)

var TopicAppDocument = bus.T(configPrefix, "app")

// EmbeddedConfigLookup allows overriding how built-in documents are resolved.
var EmbeddedConfigLookup = func(profile string) ([]byte, bool) {
	b, ok := embeddedConfigs[profile]
	return b, ok
}

// Source says where a loaded document came from.
type Source uint8

const (
	SourceNone Source = iota
	SourceStore
	SourceEmbedded
)

func (s Source) String() string {
	switch s {
	case SourceStore:
		return "store"
	case SourceEmbedded:
		return "embedded"
	default:
		return "none"
	}
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type Service struct {
	Name  string
	store store.Backend
	conn  *bus.Connection
	log   *logx.Logger
}

// NewService binds the service to the store. conn may be nil.
func NewService(b store.Backend, conn *bus.Connection) *Service {
	return &Service{Name: serviceName, store: b, conn: conn, log: logx.New(serviceName)}
}

// Load resolves this boot's app-manager document: the provisioned record if
// there is one, otherwise the embedded document for profile.
func (s *Service) Load(profile string) ([]byte, Source, error) {
	rec, ok, err := LoadRecord(s.store)
	if err != nil {
		s.log.Warn("store read failed, using embedded config", "err", err)
	}
	if ok {
		doc := Document(rec)
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, SourceNone, errcode.Wrap(errcode.InvalidPayload, "config.load", err)
		}
		s.publish(doc)
		s.log.Info("loaded provisioned config", "app", doc.App)
		return raw, SourceStore, nil
	}

	raw, found := EmbeddedConfigLookup(profile)
	if !found || len(raw) == 0 {
		return nil, SourceNone, errcode.New(errcode.NotFound, "config.load", "no embedded config for profile: "+profile)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, SourceNone, errcode.Wrap(errcode.InvalidPayload, "config.load", err)
	}
	s.publish(doc)
	s.log.Info("using embedded config", "profile", profile)
	return raw, SourceEmbedded, nil
}

func (s *Service) publish(doc any) {
	if s.conn != nil {
		s.conn.PublishRetained(TopicAppDocument, doc)
	}
}
