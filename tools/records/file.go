/*
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package records

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/ryszard/tfutils/go/tfrecord"
	"google.golang.org/protobuf/proto"

	proto1 "github.com/golang/protobuf/proto"
	tf "github.com/ryszard/tfutils/proto/tensorflow/core/example"
)

// Compression is the compression of a TFRecord file, compatible with tf.io.TFRecordOptions.
type Compression int

const (
	None Compression = iota
	GZIP
	ZLIB
)

func (c Compression) String() string {
	switch c {
	case GZIP:
		return "GZIP"
	case ZLIB:
		return "ZLIB"
	}
	return ""
}

// ParseCompression returns the Compression named s, where the empty string and "none" mean None.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return None, nil
	case "GZIP":
		return GZIP, nil
	case "ZLIB":
		return ZLIB, nil
	}
	return None, fmt.Errorf("unknown compression %q, wanted none, gzip or zlib", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(c.String())), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(b []byte) error {
	parsed, err := ParseCompression(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Writer appends tf.Examples to a TFRecord file.
type Writer struct {
	path       string
	file       *os.File
	buffer     *bufio.Writer
	compressor io.WriteCloser
	out        io.Writer
	count      int
}

// Create creates, or truncates, the TFRecord file at path.
func Create(path string, compression Compression) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		path:   path,
		file:   file,
		buffer: bufio.NewWriter(file),
	}
	switch compression {
	case None:
		w.out = w.buffer
	case GZIP:
		w.compressor = gzip.NewWriter(w.buffer)
		w.out = w.compressor
	case ZLIB:
		w.compressor = zlib.NewWriter(w.buffer)
		w.out = w.compressor
	default:
		file.Close()
		return nil, fmt.Errorf("unknown compression %v", compression)
	}
	return w, nil
}

// Write appends ex to the file.
func (w *Writer) Write(ex *tf.Example) error {
	encoded, err := proto.Marshal(proto1.MessageV2(ex))
	if err != nil {
		return err
	}
	if err := tfrecord.Write(w.out, encoded); err != nil {
		return fmt.Errorf("writing record %v to %q: %w", w.count, w.path, err)
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// Path returns the path of the file.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes the records and closes the file.
func (w *Writer) Close() error {
	if w.compressor != nil {
		if err := w.compressor.Close(); err != nil {
			w.file.Close()
			return err
		}
	}
	if err := w.buffer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

// Reader reads tf.Examples from a TFRecord file.
type Reader struct {
	file         *os.File
	decompressor io.ReadCloser
	in           *bufio.Reader
}

// Open opens the TFRecord file at path.
func Open(path string, compression Compression) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{file: file}
	buffered := bufio.NewReader(file)
	switch compression {
	case None:
		r.in = buffered
		return r, nil
	case GZIP:
		if r.decompressor, err = gzip.NewReader(buffered); err != nil {
			file.Close()
			return nil, fmt.Errorf("reading gzip header of %q: %w", path, err)
		}
	case ZLIB:
		if r.decompressor, err = zlib.NewReader(buffered); err != nil {
			file.Close()
			return nil, fmt.Errorf("reading zlib header of %q: %w", path, err)
		}
	default:
		file.Close()
		return nil, fmt.Errorf("unknown compression %v", compression)
	}
	r.in = bufio.NewReader(r.decompressor)
	return r, nil
}

// Next returns the next tf.Example, or io.EOF after the last one.
func (r *Reader) Next() (*tf.Example, error) {
	if _, err := r.in.Peek(1); err != nil {
		return nil, err
	}
	encoded, err := tfrecord.Read(fullReader{r.in})
	if err != nil {
		return nil, err
	}
	ex := &tf.Example{}
	if err := proto1.Unmarshal(encoded, ex); err != nil {
		return nil, err
	}
	return ex, nil
}

// fullReader fills the whole buffer on every Read. tfrecord.Read reads each payload with one Read call.
type fullReader struct {
	r io.Reader
}

func (f fullReader) Read(p []byte) (int, error) {
	return io.ReadFull(f.r, p)
}

// Close closes the file.
func (r *Reader) Close() error {
	if r.decompressor != nil {
		r.decompressor.Close()
	}
	return r.file.Close()
}

// ReadAll returns the decoded records of the TFRecord file at path.
func ReadAll(path string, compression Compression) ([]Record, error) {
	reader, err := Open(path, compression)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	result := []Record{}
	for {
		ex, err := reader.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading record %v of %q: %w", len(result), path, err)
		}
		record, err := Decode(ex)
		if err != nil {
			return nil, fmt.Errorf("decoding record %v of %q: %w", len(result), path, err)
		}
		result = append(result, record)
	}
}
