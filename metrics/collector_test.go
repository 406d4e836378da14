package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("file", "strict", "wire", "stream-001")

	c.IncStreamStarted()
	c.IncStreamCompleted()
	c.IncStreamFailed()
	c.IncStreamFailed()
	c.AddFrame(40)
	c.AddFrame(24)
	c.IncFramingErrors()
	c.IncStorageHeaderErrors()
	c.IncMessagesInvalid()
	c.IncMessagesInvalid()
	c.IncMessagesFiltered()
	c.IncEventsSent()
	c.IncEventsSent()
	c.IncEventsSent()
	c.IncTimelinesCreated()
	c.IncTimelineSwitches()
	c.IncTimelineSwitches()
	c.IncSinkWriteSuccess()
	c.IncSinkWriteSuccess()
	c.IncSinkWriteFailure()

	s := c.Snapshot()

	if s.StreamsStarted != 1 {
		t.Errorf("StreamsStarted = %d, want 1", s.StreamsStarted)
	}
	if s.StreamsCompleted != 1 {
		t.Errorf("StreamsCompleted = %d, want 1", s.StreamsCompleted)
	}
	if s.StreamsFailed != 2 {
		t.Errorf("StreamsFailed = %d, want 2", s.StreamsFailed)
	}
	if s.FramesRead != 2 {
		t.Errorf("FramesRead = %d, want 2", s.FramesRead)
	}
	if s.BytesRead != 64 {
		t.Errorf("BytesRead = %d, want 64", s.BytesRead)
	}
	if s.FramingErrors != 1 {
		t.Errorf("FramingErrors = %d, want 1", s.FramingErrors)
	}
	if s.StorageHeaderErrors != 1 {
		t.Errorf("StorageHeaderErrors = %d, want 1", s.StorageHeaderErrors)
	}
	if s.MessagesInvalid != 2 {
		t.Errorf("MessagesInvalid = %d, want 2", s.MessagesInvalid)
	}
	if s.MessagesFiltered != 1 {
		t.Errorf("MessagesFiltered = %d, want 1", s.MessagesFiltered)
	}
	if s.EventsSent != 3 {
		t.Errorf("EventsSent = %d, want 3", s.EventsSent)
	}
	if s.TimelinesCreated != 1 {
		t.Errorf("TimelinesCreated = %d, want 1", s.TimelinesCreated)
	}
	if s.TimelineSwitches != 2 {
		t.Errorf("TimelineSwitches = %d, want 2", s.TimelineSwitches)
	}
	if s.SinkWriteSuccess != 2 {
		t.Errorf("SinkWriteSuccess = %d, want 2", s.SinkWriteSuccess)
	}
	if s.SinkWriteFailure != 1 {
		t.Errorf("SinkWriteFailure = %d, want 1", s.SinkWriteFailure)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("network", "buffered", "lode", "stream-42")
	s := c.Snapshot()

	if s.Mode != "network" {
		t.Errorf("Mode = %q, want %q", s.Mode, "network")
	}
	if s.Policy != "buffered" {
		t.Errorf("Policy = %q, want %q", s.Policy, "buffered")
	}
	if s.Sink != "lode" {
		t.Errorf("Sink = %q, want %q", s.Sink, "lode")
	}
	if s.StreamID != "stream-42" {
		t.Errorf("StreamID = %q, want %q", s.StreamID, "stream-42")
	}
}

func TestCollector_AbsorbPolicyStats(t *testing.T) {
	c := NewCollector("file", "buffered", "wire", "")
	c.AbsorbPolicyStats(100, 92, 3)

	s := c.Snapshot()
	if s.OpsReceived != 100 {
		t.Errorf("OpsReceived = %d, want 100", s.OpsReceived)
	}
	if s.OpsWritten != 92 {
		t.Errorf("OpsWritten = %d, want 92", s.OpsWritten)
	}
	if s.Flushes != 3 {
		t.Errorf("Flushes = %d, want 3", s.Flushes)
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("file", "strict", "wire", "")
	c.IncStreamStarted()
	c.IncSinkWriteSuccess()

	s1 := c.Snapshot()

	c.IncStreamCompleted()
	c.IncSinkWriteSuccess()
	c.IncSinkWriteSuccess()

	if s1.StreamsCompleted != 0 {
		t.Errorf("s1.StreamsCompleted = %d, want 0 (snapshot should be frozen)", s1.StreamsCompleted)
	}
	if s1.SinkWriteSuccess != 1 {
		t.Errorf("s1.SinkWriteSuccess = %d, want 1 (snapshot should be frozen)", s1.SinkWriteSuccess)
	}

	s2 := c.Snapshot()
	if s2.StreamsCompleted != 1 {
		t.Errorf("s2.StreamsCompleted = %d, want 1", s2.StreamsCompleted)
	}
	if s2.SinkWriteSuccess != 3 {
		t.Errorf("s2.SinkWriteSuccess = %d, want 3", s2.SinkWriteSuccess)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncStreamStarted()
	c.IncStreamCompleted()
	c.IncStreamFailed()
	c.AddFrame(10)
	c.IncFramingErrors()
	c.IncStorageHeaderErrors()
	c.IncMessagesInvalid()
	c.IncMessagesFiltered()
	c.IncEventsSent()
	c.IncTimelinesCreated()
	c.IncTimelineSwitches()
	c.IncSinkWriteSuccess()
	c.IncSinkWriteFailure()
	c.AbsorbPolicyStats(10, 8, 2)

	s := c.Snapshot()
	if s.StreamsStarted != 0 {
		t.Errorf("nil collector snapshot StreamsStarted = %d, want 0", s.StreamsStarted)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("network", "strict", "wire", "")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.AddFrame(1)
				c.IncEventsSent()
				c.IncSinkWriteSuccess()
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.FramesRead != want {
		t.Errorf("FramesRead = %d, want %d", s.FramesRead, want)
	}
	if s.BytesRead != want {
		t.Errorf("BytesRead = %d, want %d", s.BytesRead, want)
	}
	if s.EventsSent != want {
		t.Errorf("EventsSent = %d, want %d", s.EventsSent, want)
	}
	if s.SinkWriteSuccess != want {
		t.Errorf("SinkWriteSuccess = %d, want %d", s.SinkWriteSuccess, want)
	}
}
