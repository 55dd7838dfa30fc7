package supervisor

import (
	"strconv"
	"strings"

	"github.com/pikvm/live777runner/pkg/netcfg"
)

// cmdTemplate is the effective argv template computed once at construction
// time: the configured tokens with cmdRemove filtered out and cmdAppend
// concatenated.
type cmdTemplate []string

// buildTemplate filters cmd by remove, then appends append, computing the
// effective argv template once up front instead of on every render.
func buildTemplate(cmd, remove, append_ []string) cmdTemplate {
	removeSet := make(map[string]struct{}, len(remove))
	for _, tok := range remove {
		removeSet[tok] = struct{}{}
	}

	out := make(cmdTemplate, 0, len(cmd)+len(append_))
	for _, tok := range cmd {
		if _, skip := removeSet[tok]; skip {
			continue
		}
		out = append(out, tok)
	}
	out = append(out, append_...)
	return out
}

// render substitutes {name} placeholders from cfg into each template token,
// plus the synthetic o_stun_server placeholder. When cfg.ExtIP is empty,
// o_stun_server is forced empty and every occurrence of the literal token
// "{o_stun_server}" is dropped from argv before substitution, avoiding an
// empty-string token being passed to the child.
func (t cmdTemplate) render(cfg netcfg.Cfg) []string {
	placeholders := map[string]string{
		"nat_type":  cfg.NatType.String(),
		"src_ip":    cfg.SrcIP,
		"ext_ip":    cfg.ExtIP,
		"stun_host": cfg.StunHost,
		"stun_ip":   cfg.StunIP,
		"stun_port": strconv.Itoa(int(cfg.StunPort)),
	}
	if cfg.ExtIP != "" {
		placeholders["o_stun_server"] = "--stun-server=" + cfg.StunIP + ":" + strconv.Itoa(int(cfg.StunPort))
	} else {
		placeholders["o_stun_server"] = ""
	}

	argv := make([]string, 0, len(t))
	for _, tok := range t {
		if cfg.ExtIP == "" && tok == "{o_stun_server}" {
			continue
		}
		argv = append(argv, substitute(tok, placeholders))
	}
	return argv
}

func substitute(tok string, placeholders map[string]string) string {
	for name, value := range placeholders {
		tok = strings.ReplaceAll(tok, "{"+name+"}", value)
	}
	return tok
}

// childEnv renders the three fixed environment keys derived from cfg.
func childEnv(cfg netcfg.Cfg) []string {
	return []string{
		"LIVE777_STUN_URL=stun:" + cfg.StunHost + ":" + strconv.Itoa(int(cfg.StunPort)),
		"LIVE777_VIDEO_SOURCE=kvmd::ustreamer::h264",
		"LIVE777_AUDIO_SOURCE=hw:tc358743,0",
	}
}
