package loggers

import (
	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/sirupsen/logrus"
)

var _ ethlog.Handler = (*LogrusHandler)(nil)

var levelMap = map[ethlog.Lvl]logrus.Level{
	ethlog.LvlCrit:  logrus.FatalLevel,
	ethlog.LvlError: logrus.ErrorLevel,
	ethlog.LvlWarn:  logrus.WarnLevel,
	ethlog.LvlInfo:  logrus.InfoLevel,
	ethlog.LvlDebug: logrus.DebugLevel,
	ethlog.LvlTrace: logrus.TraceLevel,
}

// LogrusHandler routes go-ethereum client logs into a module logger.
type LogrusHandler struct {
	Logger *logrus.Entry
}

func InitializeEthLog(logger *logrus.Entry) {
	ethlog.Root().SetHandler(&LogrusHandler{Logger: logger})
}

func (h *LogrusHandler) Log(record *ethlog.Record) error {
	level, ok := levelMap[record.Lvl]
	if !ok {
		level = logrus.InfoLevel
	}

	// Ctx carries alternating key value pairs.
	fields := make(logrus.Fields, len(record.Ctx)/2)
	for i := 0; i+1 < len(record.Ctx); i += 2 {
		key, ok := record.Ctx[i].(string)
		if !ok {
			continue
		}
		fields[key] = record.Ctx[i+1]
	}

	h.Logger.WithTime(record.Time).WithFields(fields).Log(level, record.Msg)
	return nil
}
