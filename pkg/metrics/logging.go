package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"
)

// LogFormatter wraps a logrus.Formatter, forwarding every entry to New Relic
// and enriching the formatted line with its linking metadata. Unlike the stock
// nrlogrus formatter, entry fields are kept in the forwarded message.
type LogFormatter struct {
	app  *newrelic.Application
	base logrus.Formatter
}

func NewCustomNewRelicLogFormatter(app *newrelic.Application, base logrus.Formatter) *LogFormatter {
	return &LogFormatter{
		app:  app,
		base: base,
	}
}

func (f *LogFormatter) Format(e *logrus.Entry) ([]byte, error) {
	formatted, err := f.base.Format(e)
	if err != nil {
		return nil, err
	}
	line := bytes.NewBuffer(bytes.TrimRight(formatted, "\n"))

	data := newrelic.LogData{
		Severity: e.Level.String(),
		Message:  forwardedMessage(e),
	}

	var txn *newrelic.Transaction
	if e.Context != nil {
		txn = newrelic.FromContext(e.Context)
	}

	if txn != nil {
		txn.RecordLog(data)
		err = newrelic.EnrichLog(line, newrelic.FromTxn(txn))
	} else {
		f.app.RecordLog(data)
		err = newrelic.EnrichLog(line, newrelic.FromApp(f.app))
	}
	if err != nil {
		return nil, err
	}

	line.WriteByte('\n')
	return line.Bytes(), nil
}

// forwardedMessage folds the entry's fields into its message. The error field
// is pulled out so it reads first.
func forwardedMessage(e *logrus.Entry) string {
	if len(e.Data) == 0 {
		return e.Message
	}

	errString := "<nil>"
	fields := make(map[string]interface{}, len(e.Data))
	for key, value := range e.Data {
		if err, ok := value.(error); ok && key == logrus.ErrorKey {
			errString = fmt.Sprintf("%q", err.Error())
			continue
		}
		fields[key] = value
	}

	encoded, err := json.Marshal(fields)
	if err != nil {
		return e.Message
	}
	return fmt.Sprintf("message=%q, error=%s, data=%s", e.Message, errString, encoded)
}
