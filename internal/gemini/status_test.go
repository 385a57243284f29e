package gemini

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		line    string
		want    Header
		wantErr bool
	}{
		{line: "20 text/gemini", want: Header{Code: 20, Meta: "text/gemini"}},
		{line: "20", want: Header{Code: 20}},
		{line: "10 Your name?", want: Header{Code: 10, Meta: "Your name?"}},
		{line: "51 ", want: Header{Code: 51, Meta: ""}},
		{line: "31  gemini://x/", want: Header{Code: 31, Meta: " gemini://x/"}},
		{line: "2", wantErr: true},
		{line: "", wantErr: true},
		{line: "ab text", wantErr: true},
		{line: "200 ok", wantErr: true},
		{line: "20\ttext/gemini", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			h, err := ParseHeader(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadHeader)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, h)
		})
	}
}

func TestReadHeader(t *testing.T) {
	br := bufio.NewReader(strings.NewReader("20 text/plain\r\nbody"))
	h, err := readHeader(br)
	require.NoError(t, err)
	assert.Equal(t, Header{Code: 20, Meta: "text/plain"}, h)

	rest, err := io.ReadAll(br)
	require.NoError(t, err)
	assert.Equal(t, "body", string(rest))
}

func TestReadHeaderBareLF(t *testing.T) {
	h, err := readHeader(bufio.NewReader(strings.NewReader("51 missing\n")))
	require.NoError(t, err)
	assert.Equal(t, 51, h.Code)
	assert.Equal(t, "missing", h.Meta)
}

func TestReadHeaderLimit(t *testing.T) {
	exact := "20 " + strings.Repeat("a", MaxHeaderLen-3)
	h, err := readHeader(bufio.NewReader(strings.NewReader(exact + "\r\n")))
	require.NoError(t, err)
	assert.Len(t, h.Meta, MaxHeaderLen-3)

	tooLong := exact + "a"
	_, err = readHeader(bufio.NewReader(strings.NewReader(tooLong + "\r\n")))
	assert.ErrorIs(t, err, errHeaderTooLong)

	// Never terminated: must stop reading well before the stream ends.
	_, err = readHeader(bufio.NewReader(strings.NewReader(strings.Repeat("x", 1<<20))))
	assert.ErrorIs(t, err, errHeaderTooLong)
}

func TestReadHeaderEOF(t *testing.T) {
	_, err := readHeader(bufio.NewReader(strings.NewReader("")))
	assert.ErrorIs(t, err, io.EOF)

	_, err = readHeader(bufio.NewReader(strings.NewReader("20 text/gemini")))
	assert.ErrorIs(t, err, errBadHeader)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Not found", StatusText(StatusNotFound))
	assert.Equal(t, "Temporary failure", StatusText(49))
	assert.Equal(t, "Client certificate required", StatusText(69))
	assert.Equal(t, "Unknown status 99", StatusText(99))
}
