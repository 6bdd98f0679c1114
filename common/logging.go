// Package common provides the logging and small generic helpers shared by
// every component in this service.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes logrus output so error-level records land on stderr
// and everything else lands on stdout, which lets container log collectors
// treat the two streams differently without parsing structured fields.
type OutputSplitter struct{}

func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide default logger, used before a service-specific
// logger (see NewLogger) has been constructed from configuration.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
