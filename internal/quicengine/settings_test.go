package quicengine

import "testing"

func TestToQUICConfigCarriesWindows(t *testing.T) {
	s := DefaultSettings()
	cfg := s.ToQUICConfig()
	if cfg.MaxIdleTimeout != s.IdleTimeout {
		t.Fatalf("MaxIdleTimeout = %v, want %v", cfg.MaxIdleTimeout, s.IdleTimeout)
	}
	if cfg.MaxStreamReceiveWindow != s.IncomingStreamFlowControlWindow {
		t.Fatalf("MaxStreamReceiveWindow = %v, want %v", cfg.MaxStreamReceiveWindow, s.IncomingStreamFlowControlWindow)
	}
	if cfg.MaxIncomingStreams != s.MaxStreamsPerConnection {
		t.Fatalf("MaxIncomingStreams = %v, want %v", cfg.MaxIncomingStreams, s.MaxStreamsPerConnection)
	}
}
