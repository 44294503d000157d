package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is the encoder quality for preview frames.
const DefaultJPEGQuality = 80

// ErrHubClosed is returned by FrameHub.Next after Close.
var ErrHubClosed = errors.New("frame hub closed")

// Feed selects one of the preview streams.
type Feed int

const (
	// FeedOutput is the composited frame.
	FeedOutput Feed = iota
	// FeedMask is the feathered debug mask.
	FeedMask
)

func (f Feed) String() string {
	if f == FeedMask {
		return "mask"
	}
	return "output"
}

type feedState struct {
	jpeg []byte
	seq  uint64
}

// FrameHub keeps the latest encoded preview frames and wakes stream clients
// when new ones arrive. It is the pipeline's frame sink.
type FrameHub struct {
	quality int

	mu     sync.Mutex
	feeds  [2]feedState
	notify chan struct{}
	closed bool
}

// NewFrameHub creates a FrameHub encoding at the given JPEG quality.
// Quality outside 1..100 uses DefaultJPEGQuality.
func NewFrameHub(quality int) *FrameHub {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &FrameHub{
		quality: quality,
		notify:  make(chan struct{}),
	}
}

// Publish encodes output and mask as JPEG. An empty mask leaves the mask
// feed unchanged.
func (h *FrameHub) Publish(output, mask gocv.Mat) {
	out, err := encodeJPEG(output, h.quality)
	if err != nil {
		log.Printf("Error encoding output frame: %v", err)
		return
	}

	var m []byte
	if !mask.Empty() {
		m, err = encodeJPEG(mask, h.quality)
		if err != nil {
			log.Printf("Error encoding mask frame: %v", err)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.feeds[FeedOutput].jpeg = out
	h.feeds[FeedOutput].seq++
	if m != nil {
		h.feeds[FeedMask].jpeg = m
		h.feeds[FeedMask].seq++
	}

	close(h.notify)
	h.notify = make(chan struct{})
}

// Latest returns the most recent JPEG of feed and its sequence number.
// The sequence is 0 when nothing was published yet.
func (h *FrameHub) Latest(feed Feed) ([]byte, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.feeds[feed]
	return st.jpeg, st.seq
}

// Next blocks until feed has a frame newer than after, ctx ends or the hub closes.
func (h *FrameHub) Next(ctx context.Context, feed Feed, after uint64) ([]byte, uint64, error) {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return nil, 0, ErrHubClosed
		}
		st := h.feeds[feed]
		wait := h.notify
		h.mu.Unlock()

		if st.seq > after {
			return st.jpeg, st.seq, nil
		}

		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-wait:
		}
	}
}

// Close wakes every waiting client and stops accepting frames.
func (h *FrameHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.notify)
}

func encodeJPEG(m gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, m, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	// The buffer lives in C memory and is freed by Close.
	return bytes.Clone(buf.GetBytes()), nil
}

// StreamHandler serves one preview feed as MJPEG.
type StreamHandler struct {
	hub  *FrameHub
	feed Feed
}

// NewStreamHandler creates a new StreamHandler for feed.
func NewStreamHandler(hub *FrameHub, feed Feed) *StreamHandler {
	return &StreamHandler{hub: hub, feed: feed}
}

// ServeHTTP streams MJPEG frames to the client as they are published.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var seq uint64
	for {
		frame, next, err := h.hub.Next(r.Context(), h.feed, seq)
		if err != nil {
			return
		}
		seq = next

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
		if _, err := w.Write(frame); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
