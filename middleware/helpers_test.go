package middleware

import (
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func newQuietLogger() (*logrus.Logger, *logtest.Hook) {
	return logtest.NewNullLogger()
}
