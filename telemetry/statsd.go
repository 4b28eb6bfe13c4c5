// Package telemetry wraps the statsd client behind a small surface, so
// swapping the metrics backend only touches this file.
package telemetry

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
)

var client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}

func Client() ddstatsd.ClientInterface {
	return client
}

// EmitFrameStat reports how long a frame stage took. Stages are tag
// values: "render", "pointer", "key".
func EmitFrameStat(start time.Time, stage string) {
	duration := time.Since(start)
	if err := Client().Timing("frame", duration, []string{"stage:" + stage}, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit frame stat: %v", err)
	}
}

// EmitEntityCount reports the size of the entity table.
func EmitEntityCount(n int) {
	if err := Client().Gauge("entities", float64(n), nil, 1); err != nil {
		log.Logger.Warn().Msgf("failed to emit entity count: %v", err)
	}
}

// Init replaces the default no-op client with one that ships metrics to
// address. All metrics carry the "loom" namespace prefix.
func Init(address string, tags []string) error {
	if address == "" {
		return eris.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		ddstatsd.WithNamespace("loom"),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return eris.Wrap(err, "")
	}
	client = newClient
	return nil
}

// Close flushes and shuts the client down, restoring the no-op client.
func Close() error {
	err := client.Close()
	client = &ddstatsd.NoOpClient{}
	return eris.Wrap(err, "")
}
