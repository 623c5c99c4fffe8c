package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Record kinds.
const (
	KindConnect  = "CONNECT"
	KindSent     = "SENT"
	KindReceived = "RECEIVED"
	KindDropped  = "DROPPED"
	KindClose    = "CLOSE"
)

type Record struct {
	Timestamp time.Time
	Kind      string
	Bytes     int
}

// Collector aggregates the frames of one client run. Records are funneled
// through a buffered channel into a single goroutine started by Start.
type Collector struct {
	records   chan Record
	Done      chan struct{}
	csvWriter *csv.Writer
	now       func() time.Time
	Stats     Statistics
}

type Statistics struct {
	Connections    int
	Closes         int
	SentFrames     int
	SentBytes      int64
	ReceivedFrames int
	ReceivedBytes  int64
	DroppedFrames  int
	StartTime      time.Time
	EndTime        time.Time
}

// NewCollector returns a collector. When csvOut is non-nil every record is
// also written to it as a CSV line.
func NewCollector(csvOut io.Writer) *Collector {
	c := &Collector{
		records: make(chan Record, 1024),
		Done:    make(chan struct{}),
		now:     time.Now,
	}
	if csvOut != nil {
		c.csvWriter = csv.NewWriter(csvOut)
		c.csvWriter.Write([]string{"timestamp", "kind", "bytes"})
	}
	return c
}

func (c *Collector) Record(r Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = c.now()
	}
	c.records <- r
}

func (c *Collector) Start() {
	c.Stats.StartTime = c.now()
	go func() {
		for r := range c.records {
			switch r.Kind {
			case KindConnect:
				c.Stats.Connections++
			case KindClose:
				c.Stats.Closes++
			case KindSent:
				c.Stats.SentFrames++
				c.Stats.SentBytes += int64(r.Bytes)
			case KindReceived:
				c.Stats.ReceivedFrames++
				c.Stats.ReceivedBytes += int64(r.Bytes)
			case KindDropped:
				c.Stats.DroppedFrames++
			}

			if c.csvWriter != nil {
				c.csvWriter.Write([]string{
					r.Timestamp.Format(time.RFC3339Nano),
					r.Kind,
					strconv.Itoa(r.Bytes),
				})
			}
		}
		if c.csvWriter != nil {
			c.csvWriter.Flush()
		}
		c.Stats.EndTime = c.now()
		close(c.Done)
	}()
}

func (c *Collector) RecordConnection() {
	c.Record(Record{Kind: KindConnect})
}

func (c *Collector) RecordClose() {
	c.Record(Record{Kind: KindClose})
}

func (c *Collector) RecordSent(n int) {
	c.Record(Record{Kind: KindSent, Bytes: n})
}

func (c *Collector) RecordReceived(n int) {
	c.Record(Record{Kind: KindReceived, Bytes: n})
}

func (c *Collector) RecordDropped(n int) {
	c.Record(Record{Kind: KindDropped, Bytes: n})
}

// Close stops accepting records. Wait on Done before reading Stats.
func (c *Collector) Close() {
	close(c.records)
}

func (c *Collector) PrintSummary(w io.Writer) {
	duration := c.Stats.EndTime.Sub(c.Stats.StartTime)

	fmt.Fprintln(w, "========= Session Summary =========")
	fmt.Fprintf(w, "Duration: %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Connections: %d\n", c.Stats.Connections)
	fmt.Fprintf(w, "Closes: %d\n", c.Stats.Closes)
	fmt.Fprintf(w, "Sent: %d frames (%d bytes)\n", c.Stats.SentFrames, c.Stats.SentBytes)
	fmt.Fprintf(w, "Received: %d frames (%d bytes)\n", c.Stats.ReceivedFrames, c.Stats.ReceivedBytes)
	fmt.Fprintf(w, "Dropped: %d frames\n", c.Stats.DroppedFrames)
	fmt.Fprintln(w, "===================================")
}
