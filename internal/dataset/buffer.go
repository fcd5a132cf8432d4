package dataset

import (
	"bytes"
	"fmt"
	"io"
)

// Buffer is a dataset re-serialized in its own format and held in memory,
// ready to be written out as a download. It reads from offset 0.
type Buffer struct {
	*bytes.Reader

	data    []byte
	dataset *Dataset
}

// Buffer serializes the dataset into memory in its original format.
// Every call produces a fresh buffer positioned at offset 0.
func (d *Dataset) Buffer() (*Buffer, error) {
	var b bytes.Buffer
	if err := d.Encode(&b); err != nil {
		return nil, fmt.Errorf("encode %s: %w", d.Format, err)
	}
	data := b.Bytes()
	return &Buffer{
		Reader:  bytes.NewReader(data),
		data:    data,
		dataset: d,
	}, nil
}

// Encode writes the dataset to w in its original format.
func (d *Dataset) Encode(w io.Writer) error {
	if d.Format == FormatXLSX {
		return writeXLSX(w, d)
	}
	return writeCSV(w, d)
}

// Bytes returns the serialized content. The slice must not be modified.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Dataset returns the dataset the buffer was built from.
func (b *Buffer) Dataset() *Dataset {
	return b.dataset
}

// ContentType returns the MIME type of the serialized content.
func (b *Buffer) ContentType() string {
	return b.dataset.Format.ContentType()
}
