package transport

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/kleinesfilmroellchen/hyperflut/internal/color"
)

// newPipeTCP builds a TextTCP wired to one end of a net.Pipe, handing the
// other end back so tests can assert on exactly what was written to the
// wire.
func newPipeTCP(t *testing.T, flushPerPixel, batch bool) (*TextTCP, net.Conn) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	tcp := &TextTCP{
		conn:          clientSide,
		r:             bufio.NewReaderSize(clientSide, readBufferSize),
		w:             bufio.NewWriterSize(clientSide, writeBufferSize),
		flushPerPixel: flushPerPixel,
		batch:         batch,
	}
	return tcp, serverSide
}

func readAll(t *testing.T, conn net.Conn, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := readFull(conn, buf); err != nil {
		t.Fatalf("read from pipe: %v", err)
	}
	return buf
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestEncodePixelLine(t *testing.T) {
	got := string(encodePixelLine(nil, 10, 20, color.New(0x12, 0x34, 0x56, 0xFF)))
	if want := "PX 10 20 123456\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	got = string(encodePixelLine(nil, 10, 20, color.New(0x12, 0x34, 0x56, 0x80)))
	if want := "PX 10 20 12345680\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestScenarioS1FlushPerPixel exercises SPEC_FULL.md §8 S1: a single
// opaque red pixel with flush=true emits exactly "PX 0 0 FF0000\n" and the
// stream is flushed (readable immediately, with no further buffering).
func TestScenarioS1FlushPerPixel(t *testing.T) {
	tcp, server := newPipeTCP(t, true, false)
	done := make(chan []byte, 1)
	go func() {
		done <- readAll(t, server, len("PX 0 0 FF0000\n"))
	}()

	if err := tcp.SendPixel(0, 0, color.New(0xFF, 0, 0, 0xFF)); err != nil {
		t.Fatalf("SendPixel: %v", err)
	}

	select {
	case got := <-done:
		if string(got) != "PX 0 0 FF0000\n" {
			t.Fatalf("got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flushed write")
	}
}

// TestScenarioS2HalfAlpha exercises S2: an offset-carrying pixel with
// alpha 128 encodes the full 8-digit hex.
func TestScenarioS2HalfAlpha(t *testing.T) {
	got := string(encodePixelLine(nil, 5, 7, color.New(10, 20, 30, 128)))
	if want := "PX 5 7 0A141E80\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// TestScenarioS3OffsetCommand exercises S3: connecting with
// UseOffsetCommand emits "OFFSET x y\n" before any pixel.
func TestScenarioS3OffsetCommand(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	connected := make(chan struct{})
	go func() {
		serverSide, err := ln.Accept()
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer serverSide.Close()
		buf := make([]byte, len("OFFSET 3 4\n"))
		if _, err := readFull(serverSide, buf); err != nil {
			t.Errorf("read OFFSET: %v", err)
			return
		}
		if string(buf) != "OFFSET 3 4\n" {
			t.Errorf("got %q, want OFFSET 3 4\\n", buf)
		}
		close(connected)
	}()

	tcp, err := ConnectTCP(TCPConfig{
		Host:             ln.Addr().String(),
		UseOffsetCommand: true,
		OffsetX:          3,
		OffsetY:          4,
	})
	if err != nil {
		t.Fatalf("ConnectTCP: %v", err)
	}
	defer tcp.Close()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OFFSET")
	}
}

// TestScenarioS4NoPixelsWrittenWhenNoneSent exercises S4: a painter never
// calls SendPixel for alpha=0 pixels. This asserts the transport-level
// half of the contract: FlushPixels with no prior SendPixel writes no PX
// bytes, only whatever FlushPixels itself does.
func TestScenarioS4NoPixelsWrittenWhenNoneSent(t *testing.T) {
	tcp, server := newPipeTCP(t, false, false)
	go server.Close()
	if err := tcp.FlushPixels(); err != nil {
		t.Fatalf("FlushPixels: %v", err)
	}
}

// TestScenarioS6BatchMode exercises S6: batch mode writes the same bytes
// on every FlushPixels call without re-walking pixels.
func TestScenarioS6BatchMode(t *testing.T) {
	tcp, server := newPipeTCP(t, false, true)

	if err := tcp.SendPixel(0, 0, color.New(1, 2, 3, 0xFF)); err != nil {
		t.Fatalf("SendPixel: %v", err)
	}
	if err := tcp.SendPixel(1, 0, color.New(4, 5, 6, 0xFF)); err != nil {
		t.Fatalf("SendPixel: %v", err)
	}

	want := "PX 0 0 010203\nPX 1 0 040506\n\n"

	first := make(chan []byte, 1)
	go func() { first <- readAll(t, server, len(want)) }()
	if err := tcp.FlushPixels(); err != nil {
		t.Fatalf("FlushPixels: %v", err)
	}
	if got := <-first; string(got) != want {
		t.Fatalf("first flush: got %q, want %q", got, want)
	}

	// Sending more pixels while batch-ready must be a no-op.
	if err := tcp.SendPixel(9, 9, color.New(9, 9, 9, 0xFF)); err != nil {
		t.Fatalf("SendPixel (no-op expected): %v", err)
	}

	second := make(chan []byte, 1)
	go func() { second <- readAll(t, server, len(want)) }()
	if err := tcp.FlushPixels(); err != nil {
		t.Fatalf("second FlushPixels: %v", err)
	}
	if got := <-second; string(got) != want {
		t.Fatalf("second flush: got %q, want identical bytes %q", got, want)
	}
}

// TestClearBuffersInvalidatesBatch exercises invariant 6: ClearBuffers
// resets the batch so the next frame starts clean.
func TestClearBuffersInvalidatesBatch(t *testing.T) {
	tcp, server := newPipeTCP(t, false, true)
	defer server.Close()

	if err := tcp.SendPixel(0, 0, color.New(1, 1, 1, 0xFF)); err != nil {
		t.Fatalf("SendPixel: %v", err)
	}
	tcp.ClearBuffers()
	if tcp.batchReady {
		t.Fatal("batchReady should be false after ClearBuffers")
	}
	if len(tcp.batchBuf) != 0 {
		t.Fatalf("batchBuf should be empty after ClearBuffers, got %q", tcp.batchBuf)
	}
}

func TestReadScreenSizeVariants(t *testing.T) {
	cases := []struct {
		line       string
		wantW      uint16
		wantH      uint16
		wantErrNil bool
	}{
		{"SIZE 100 200\n", 100, 200, true},
		{"size\t1920  1080\n", 1920, 1080, true},
		{"  SIZE 1 1  \n", 1, 1, true},
		{"NOPE\n", 0, 0, false},
	}
	for _, c := range cases {
		clientSide, serverSide := net.Pipe()
		tcp := &TextTCP{
			conn: clientSide,
			r:    bufio.NewReaderSize(clientSide, readBufferSize),
			w:    bufio.NewWriterSize(clientSide, writeBufferSize),
		}

		go func(line string) {
			buf := make([]byte, len("SIZE\n"))
			readFull(serverSide, buf)
			serverSide.Write([]byte(line))
		}(c.line)

		w, h, err := tcp.ReadScreenSize()
		if c.wantErrNil && err != nil {
			t.Fatalf("line %q: unexpected error: %v", c.line, err)
		}
		if !c.wantErrNil && err == nil {
			t.Fatalf("line %q: expected error, got none", c.line)
		}
		if c.wantErrNil && (w != c.wantW || h != c.wantH) {
			t.Fatalf("line %q: got (%d,%d), want (%d,%d)", c.line, w, h, c.wantW, c.wantH)
		}
		clientSide.Close()
		serverSide.Close()
	}
}
