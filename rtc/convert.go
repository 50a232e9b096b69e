package rtc

import (
	"encoding/json"
	"fmt"

	"github.com/meshlink/meshlink/config"
	"github.com/meshlink/meshlink/signaling"
	"github.com/pion/webrtc/v4"
)

func toPionConfiguration(cfg config.Config) webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(cfg.RTC.ICEServers))
	for _, s := range cfg.RTC.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if cfg.ICETransportPolicy == config.ICETransportPolicyRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	bundlePolicy := webrtc.BundlePolicyBalanced
	switch cfg.RTC.BundlePolicy {
	case signaling.BundlePolicyMaxBundle:
		bundlePolicy = webrtc.BundlePolicyMaxBundle
	case signaling.BundlePolicyMaxCompat:
		bundlePolicy = webrtc.BundlePolicyMaxCompat
	}

	return webrtc.Configuration{
		ICEServers:           servers,
		ICETransportPolicy:   policy,
		BundlePolicy:         bundlePolicy,
		RTCPMuxPolicy:        webrtc.RTCPMuxPolicyRequire,
		ICECandidatePoolSize: uint8(cfg.RTC.ICECandidatePoolSize),
	}
}

func candidateToWire(c *webrtc.ICECandidate) signaling.ICECandidate {
	init := c.ToJSON()
	data, _ := json.Marshal(init)
	var wire signaling.ICECandidate
	_ = json.Unmarshal(data, &wire)
	return wire
}

func candidateFromWire(candidate signaling.ICECandidate) (webrtc.ICECandidateInit, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("marshal candidate: %w", err)
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &init); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("unmarshal candidate: %w", err)
	}
	return init, nil
}
