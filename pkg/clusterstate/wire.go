package clusterstate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/stratum/pkg/types"
)

// Serialize renders cs as the canonical single-line whitespace-
// separated token stream described in spec.md §6, e.g.:
//
//	version:42 cluster:u bits:16 distributor:3 storage:5 storage.2.s:d storage.2.m:disk_fail
//
// Writing always emits full (non-relative) keys, sorts nodes ascending
// by (type, index), and trims trailing Down nodes from the emitted
// counts.
func (cs ClusterState) Serialize() string {
	var tokens []string
	tokens = append(tokens, fmt.Sprintf("version:%d", cs.version))
	tokens = append(tokens, fmt.Sprintf("cluster:%c", cs.cluster.Code()))
	tokens = append(tokens, fmt.Sprintf("bits:%d", cs.distributionBits))

	distCount := cs.effectiveCount(types.NodeTypeDistributor)
	storCount := cs.effectiveCount(types.NodeTypeStorage)
	tokens = append(tokens, fmt.Sprintf("distributor:%d", distCount))
	tokens = append(tokens, fmt.Sprintf("storage:%d", storCount))

	var nodes []types.Node
	for n := range cs.nodes {
		nodes = append(nodes, n)
	}
	sortNodes(nodes)

	for _, n := range nodes {
		if n.Type == types.NodeTypeDistributor && n.Index >= distCount {
			continue // trimmed tail
		}
		if n.Type == types.NodeTypeStorage && n.Index >= storCount {
			continue
		}
		ns := cs.nodes[n]
		if ns.IsDefault() {
			continue
		}
		prefix := fmt.Sprintf("%s.%d", n.Type, n.Index)
		tokens = append(tokens, fmt.Sprintf("%s.s:%c", prefix, ns.State.Code()))
		if n.Type == types.NodeTypeStorage && ns.Capacity != 0 && ns.Capacity != 1.0 {
			tokens = append(tokens, fmt.Sprintf("%s.c:%s", prefix, formatFloat(ns.Capacity)))
		}
		if ns.MinUsedBits > 1 {
			tokens = append(tokens, fmt.Sprintf("%s.b:%d", prefix, ns.MinUsedBits))
		}
		if ns.State == types.StateInitializing && ns.InitProgress != 0 {
			tokens = append(tokens, fmt.Sprintf("%s.i:%s", prefix, formatFloat(ns.InitProgress)))
		}
		if ns.StartTimestamp != 0 {
			tokens = append(tokens, fmt.Sprintf("%s.t:%d", prefix, ns.StartTimestamp))
		}
		if ns.Description != "" {
			tokens = append(tokens, fmt.Sprintf("%s.m:%s", prefix, escapeDescription(ns.Description)))
		}
	}

	return strings.Join(tokens, " ")
}

func sortNodes(nodes []types.Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].Compare(nodes[j-1]) < 0; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// escapeDescription backslash-escapes spaces in a NodeState description
// so it survives whitespace tokenization (spec.md §6).
func escapeDescription(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, " ", `\ `)
	return s
}

func unescapeDescription(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Parse reads the wire format produced by Serialize. Reading is
// forgiving: unknown keys are ignored for forward compatibility
// (spec.md §6), and relative keys beginning with "." inherit the last
// absolute node path seen.
func Parse(line string) (ClusterState, error) {
	cs := New(16)
	lastAbsPath := ""

	for _, tok := range tokenize(line) {
		key, value, ok := strings.Cut(tok, ":")
		if !ok {
			continue
		}

		resolved := key
		if strings.HasPrefix(key, ".") {
			resolved = lastAbsPath + key
		} else if i := strings.LastIndex(key, "."); i >= 0 {
			lastAbsPath = key[:i]
		}

		segs := strings.Split(resolved, ".")
		switch {
		case len(segs) == 1 && segs[0] == "version":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return cs, fmt.Errorf("clusterstate: bad version %q: %w", value, err)
			}
			cs.version = uint32(v)

		case len(segs) == 1 && segs[0] == "cluster":
			s, err := types.ParseState(valueByte(value))
			if err != nil {
				return cs, fmt.Errorf("clusterstate: bad cluster state %q: %w", value, err)
			}
			cs.cluster = s

		case len(segs) == 1 && segs[0] == "bits":
			b, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return cs, fmt.Errorf("clusterstate: bad bits %q: %w", value, err)
			}
			cs.distributionBits = uint8(b)

		case len(segs) == 1 && segs[0] == "distributor":
			n, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return cs, fmt.Errorf("clusterstate: bad distributor count %q: %w", value, err)
			}
			cs.distributorCount = uint16(n)

		case len(segs) == 1 && segs[0] == "storage":
			n, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return cs, fmt.Errorf("clusterstate: bad storage count %q: %w", value, err)
			}
			cs.storageCount = uint16(n)

		case len(segs) == 3:
			nodeType, err := types.ParseNodeType(segs[0])
			if err != nil {
				continue // unknown key: ignored for forward compatibility
			}
			idx, err := strconv.ParseUint(segs[1], 10, 16)
			if err != nil {
				continue
			}
			n := types.Node{Type: nodeType, Index: uint16(idx)}
			ns := cs.nodes[n]
			if _, ok := cs.nodes[n]; !ok {
				ns = types.DefaultNodeState()
				if nodeType == types.NodeTypeDistributor {
					ns.Capacity = 0
				}
			}
			switch segs[2] {
			case "s":
				s, err := types.ParseState(valueByte(value))
				if err != nil {
					return cs, fmt.Errorf("clusterstate: bad node state %q: %w", value, err)
				}
				ns.State = s
			case "c":
				f, err := strconv.ParseFloat(value, 64)
				if err != nil {
					continue
				}
				ns.Capacity = f
			case "b":
				b, err := strconv.ParseUint(value, 10, 8)
				if err != nil {
					continue
				}
				ns.MinUsedBits = uint8(b)
			case "i":
				f, err := strconv.ParseFloat(value, 64)
				if err != nil {
					continue
				}
				ns.InitProgress = f
			case "t":
				ts, err := strconv.ParseInt(value, 10, 64)
				if err != nil {
					continue
				}
				ns.StartTimestamp = ts
			case "m":
				ns.Description = unescapeDescription(value)
			default:
				// unknown key: ignored for forward compatibility
				continue
			}
			cs.nodes[n] = ns

		default:
			// unknown key shape: ignored for forward compatibility
		}
	}

	return cs, nil
}

func valueByte(v string) byte {
	if len(v) == 0 {
		return '-'
	}
	return v[0]
}

// tokenize splits on unescaped whitespace, keeping a backslash-escaped
// space as part of the preceding token (spec.md §6: "tokens must remain
// null-terminated internally" — i.e. an escaped space never splits a
// token).
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			cur.WriteRune('\\')
			cur.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == ' ' || r == '\t' {
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
