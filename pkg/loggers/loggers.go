package loggers

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomesh/axiom-aa-sdk/pkg/repo"
)

const (
	App      = "app"
	Builder  = "builder"
	Gas      = "gas"
	Session  = "session"
	Signer   = "signer"
	Sponsor  = "sponsor"
	Relay    = "relay"
	Executor = "executor"
	Chain    = "chain"
	Storage  = "storage"
)

var w = &LoggerWrapper{loggers: defaultLoggers()}

type LoggerWrapper struct {
	loggers map[string]*logrus.Entry
}

func newWithModule(name string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000",
	})
	return logger.WithField("module", name)
}

func defaultLoggers() map[string]*logrus.Entry {
	m := make(map[string]*logrus.Entry)
	for _, name := range []string{App, Builder, Gas, Session, Signer, Sponsor, Relay, Executor, Chain, Storage} {
		m[name] = newWithModule(name)
	}
	return m
}

// Initialize applies the configured level and format to every module logger.
func Initialize(rep *repo.Repo) error {
	config := rep.Config

	m := defaultLoggers()
	moduleLevels := map[string]string{
		App:      config.Log.Module.APP,
		Builder:  config.Log.Module.Builder,
		Gas:      config.Log.Module.Gas,
		Session:  config.Log.Module.Session,
		Signer:   config.Log.Module.Signer,
		Sponsor:  config.Log.Module.Sponsor,
		Relay:    config.Log.Module.Relay,
		Executor: config.Log.Module.Executor,
		Chain:    config.Log.Module.Chain,
		Storage:  config.Log.Module.Storage,
	}
	for name, entry := range m {
		raw := moduleLevels[name]
		if raw == "" {
			raw = config.Log.Level
		}
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			return errors.Wrapf(err, "failed to parse log level for module %s", name)
		}
		entry.Logger.SetLevel(level)
		entry.Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    !config.Log.DisableTimestamp,
			DisableTimestamp: config.Log.DisableTimestamp,
			TimestampFormat:  "2006-01-02T15:04:05.000",
			ForceColors:      config.Log.EnableColor,
		})
	}

	w = &LoggerWrapper{loggers: m}
	InitializeEthLog(m[Chain])
	return nil
}

func Logger(name string) logrus.FieldLogger {
	return w.loggers[name]
}
