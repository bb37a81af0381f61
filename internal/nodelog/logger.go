// Package nodelog configures the structured logger shared by every
// validator-node component, using logrus throughout rather than
// introducing a second logging convention.
package nodelog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger at the given level, writing to stderr, or to
// file instead of stderr when file is set. An empty level defaults to "info".
func New(level string, file string) (*logrus.Logger, error) {
	lg := logrus.New()
	lg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(orDefault(level, "info"))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	lg.SetLevel(lvl)

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		lg.SetOutput(f)
	}
	return lg, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
