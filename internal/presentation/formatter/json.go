package formatter

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/penwyp/go-ici-sync/internal/data/aggregator"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) Format(w io.Writer, v View) error {
	if v.Groups == nil {
		v.Groups = []aggregator.Group{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
