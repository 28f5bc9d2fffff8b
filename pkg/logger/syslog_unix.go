//go:build !windows && !plan9

package logger

import (
	"io"
	"log/syslog"

	"github.com/rs/zerolog"
)

// openSyslog connects to the local system logger under the given tag
func openSyslog(tag string) (zerolog.LevelWriter, io.Closer, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, tag)
	if err != nil {
		return nil, nil, err
	}
	return zerolog.SyslogLevelWriter(w), w, nil
}
