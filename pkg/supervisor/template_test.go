package supervisor

import (
	"reflect"
	"testing"

	"github.com/pikvm/live777runner/pkg/netcfg"
	"github.com/pikvm/live777runner/pkg/stun"
)

func TestBuildTemplateRemovesAndAppends(t *testing.T) {
	tmpl := buildTemplate(
		[]string{"/usr/bin/live777", "--legacy-flag", "--port=8889"},
		[]string{"--legacy-flag"},
		[]string{"--extra=1"},
	)
	want := cmdTemplate{"/usr/bin/live777", "--port=8889", "--extra=1"}
	if !reflect.DeepEqual(tmpl, want) {
		t.Fatalf("got %v, want %v", tmpl, want)
	}
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	tmpl := buildTemplate([]string{"--nat={nat_type}", "--src={src_ip}", "--ext={ext_ip}"}, nil, nil)
	cfg := netcfg.Cfg{
		NatType: stun.NatTypeFullConeNat,
		SrcIP:   "10.0.0.5",
		ExtIP:   "198.51.100.5",
	}
	argv := tmpl.render(cfg)
	want := []string{"--nat=Full Cone NAT", "--src=10.0.0.5", "--ext=198.51.100.5"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("got %v, want %v", argv, want)
	}
}

func TestRenderStunServerPlaceholderWhenExtIPPresent(t *testing.T) {
	tmpl := buildTemplate([]string{"live777", "{o_stun_server}"}, nil, nil)
	cfg := netcfg.Cfg{ExtIP: "198.51.100.5", StunIP: "203.0.113.1", StunPort: 3478}
	argv := tmpl.render(cfg)
	want := []string{"live777", "--stun-server=203.0.113.1:3478"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("got %v, want %v", argv, want)
	}
}

func TestRenderDropsStunServerTokenWhenExtIPEmpty(t *testing.T) {
	tmpl := buildTemplate([]string{"live777", "{o_stun_server}", "--port=8889"}, nil, nil)
	cfg := netcfg.Cfg{ExtIP: ""}
	argv := tmpl.render(cfg)
	want := []string{"live777", "--port=8889"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("got %v, want %v (stun-server token must be dropped, not emptied)", argv, want)
	}
}

func TestChildEnvFixedKeys(t *testing.T) {
	cfg := netcfg.Cfg{StunHost: "stun.example.org", StunPort: 19302}
	env := childEnv(cfg)
	want := []string{
		"LIVE777_STUN_URL=stun:stun.example.org:19302",
		"LIVE777_VIDEO_SOURCE=kvmd::ustreamer::h264",
		"LIVE777_AUDIO_SOURCE=hw:tc358743,0",
	}
	if !reflect.DeepEqual(env, want) {
		t.Fatalf("got %v, want %v", env, want)
	}
}
