package logging

import "github.com/golang/glog"

// Glog adapts the glog package (as used for severity logging in distr1-distri)
// to the Logger interface. It is never called directly by the codec — only
// through this adapter — so glog's global flag state stays opt-in.
type Glog struct{}

// NewGlog returns a Logger backed by glog's severity-leveled output.
func NewGlog() Logger {
	return Glog{}
}

func (Glog) Debugf(format string, args ...any) {
	glog.V(1).Infof(format, args...)
}

func (Glog) Warnf(format string, args ...any) {
	glog.Warningf(format, args...)
}

func (Glog) Errorf(format string, args ...any) {
	glog.Errorf(format, args...)
}
