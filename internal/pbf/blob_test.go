package pbf

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"testing"

	"github.com/wegman-software/osm2svg/internal/pbf/pbftest"
)

func TestBlobReader(t *testing.T) {
	payload := pbftest.EncodeHeaderBlock("OsmSchema-V0.6")
	file := pbftest.EncodeFileBlob(blobTypeHeader, pbftest.EncodeBlob(payload, false))

	br := newBlobReader(bytes.NewReader(file))
	b, err := br.next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if b.kind != blobTypeHeader {
		t.Errorf("kind = %q, want %q", b.kind, blobTypeHeader)
	}
	if b.offset != 0 {
		t.Errorf("offset = %d, want 0", b.offset)
	}

	got, err := blobPayload(b.data)
	if err != nil {
		t.Fatalf("blobPayload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch")
	}

	if _, err := br.next(); err != io.EOF {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestBlobReaderSecondBlobOffset(t *testing.T) {
	first := pbftest.EncodeFileBlob(blobTypeHeader, pbftest.EncodeBlob(pbftest.EncodeHeaderBlock(), false))
	second := pbftest.EncodeFileBlob(blobTypeData, pbftest.EncodeBlob(pbftest.Block{Strings: []string{""}}.Encode(), false))
	file := append(append([]byte{}, first...), second...)

	br := newBlobReader(bytes.NewReader(file))
	if _, err := br.next(); err != nil {
		t.Fatal(err)
	}
	b, err := br.next()
	if err != nil {
		t.Fatal(err)
	}
	if b.offset != int64(len(first)) {
		t.Errorf("second blob offset = %d, want %d", b.offset, len(first))
	}
}

func TestBlobReaderTruncated(t *testing.T) {
	file := pbftest.EncodeFileBlob(blobTypeData, pbftest.EncodeBlob([]byte("payload"), false))

	tests := []struct {
		name string
		cut  int
	}{
		{name: "inside length prefix", cut: 2},
		{name: "inside blob header", cut: 6},
		{name: "inside blob body", cut: len(file) - 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := newBlobReader(bytes.NewReader(file[:tt.cut]))
			_, err := br.next()
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %v", err)
			}
			if de.Offset != 0 {
				t.Errorf("offset = %d, want 0", de.Offset)
			}
		})
	}
}

func TestBlobReaderHeaderSizeOutOfRange(t *testing.T) {
	// Length prefix claims a 16MB header
	file := []byte{0x01, 0x00, 0x00, 0x00}
	br := newBlobReader(bytes.NewReader(file))
	_, err := br.next()
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
}

func TestBlobPayloadZlib(t *testing.T) {
	payload := []byte("some primitive block bytes")
	got, err := blobPayload(pbftest.EncodeBlob(payload, true))
	if err != nil {
		t.Fatalf("blobPayload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch after zlib round trip")
	}
}

func TestBlobPayloadRawSizeMismatch(t *testing.T) {
	var b []byte
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte("four"))
	zw.Close()
	b = pbftest.AppendVarintField(b, 2, 99) // wrong raw_size
	b = pbftest.AppendBytesField(b, 3, buf.Bytes())

	if _, err := blobPayload(b); err == nil {
		t.Fatal("expected error for raw_size mismatch")
	}
}

func TestBlobPayloadUnsupportedCompression(t *testing.T) {
	var b []byte
	b = pbftest.AppendBytesField(b, 4, []byte{1, 2, 3}) // lzma
	if _, err := blobPayload(b); err == nil {
		t.Fatal("expected error for lzma blob")
	}
}
