package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// SetLogging sets the level and output of the standard logger.
func SetLogging(level logrus.Level, out io.Writer) {
	logrus.SetLevel(level)
	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}
