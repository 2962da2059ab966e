package textcodec

const (
	maxCodes       = 250
	verbatimByte   = 254 // one literal byte follows
	verbatimString = 255 // length-1 then up to 256 literal bytes follow
)

type codebook struct {
	entries []string
	root    trieNode
}

type trieNode struct {
	next     map[byte]*trieNode
	code     byte
	terminal bool
}

// newCodebook keeps the first occurrence of every entry, in order, up to maxCodes.
func newCodebook(entries []string) *codebook {
	cb := &codebook{entries: make([]string, 0, maxCodes)}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		if len(cb.entries) == maxCodes {
			break
		}
		seen[e] = struct{}{}
		cb.root.put(e, byte(len(cb.entries)))
		cb.entries = append(cb.entries, e)
	}
	return cb
}

func (n *trieNode) put(key string, code byte) {
	for i := 0; i < len(key); i++ {
		if n.next == nil {
			n.next = make(map[byte]*trieNode)
		}
		child, ok := n.next[key[i]]
		if !ok {
			child = &trieNode{}
			n.next[key[i]] = child
		}
		n = child
	}
	n.code = code
	n.terminal = true
}

// longest returns the length and code of the longest entry prefixing s, or 0.
func (n *trieNode) longest(s string) (int, byte) {
	var (
		bestLen  int
		bestCode byte
	)
	for i := 0; i < len(s); i++ {
		child, ok := n.next[s[i]]
		if !ok {
			break
		}
		n = child
		if n.terminal {
			bestLen = i + 1
			bestCode = n.code
		}
	}
	return bestLen, bestCode
}
