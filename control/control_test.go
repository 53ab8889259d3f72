package control

import "testing"

func TestConfigStoreReloadListener(t *testing.T) {
	cs := NewConfigStore()
	done := make(chan struct{})
	cs.OnReload(func() { close(done) })
	cs.SetConfig(map[string]any{"user_agent": "x/1.0"})
	<-done

	snap := cs.GetSnapshot()
	if snap["user_agent"] != "x/1.0" {
		t.Fatalf("snapshot = %v", snap)
	}
}

func TestMetricsRegistrySnapshot(t *testing.T) {
	mr := NewMetricsRegistry()
	mr.Set("bytes_sent", int64(42))
	snap := mr.GetSnapshot()
	if snap["bytes_sent"] != int64(42) {
		t.Fatalf("snapshot = %v", snap)
	}
}

func TestDebugProbesDumpState(t *testing.T) {
	dp := NewDebugProbes()
	dp.RegisterProbe("answer", func() any { return 42 })
	state := dp.DumpState()
	if state["answer"] != 42 {
		t.Fatalf("state = %v", state)
	}
}
