package log

import "github.com/sirupsen/logrus"

// BadgerAdapter routes BadgerDB's internal logging (from the visited-set
// store) through logrus so all crawl output shares one stream.
type BadgerAdapter struct {
	*logrus.Entry
}

// NewBadgerAdapter creates an adapter around a contextualized entry.
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry}
}

func (l *BadgerAdapter) Errorf(f string, v ...interface{})   { l.Entry.Errorf(f, v...) }
func (l *BadgerAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }
func (l *BadgerAdapter) Infof(f string, v ...interface{})    { l.Entry.Infof(f, v...) }
func (l *BadgerAdapter) Debugf(f string, v ...interface{})   { l.Entry.Debugf(f, v...) }
