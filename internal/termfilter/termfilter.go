// Package termfilter implements the terminal output filter: a state
// machine that strips CSI escape sequences (eliding SGR) and transliterates
// UTF-8 "activity" glyphs to plain ASCII, including a rotating spinner
// substitution. It must survive arbitrary packet-boundary splits, so all
// state lives on the Filter value between calls.
package termfilter

type phase int

const (
	phaseNormal phase = iota
	phaseEsc
	phaseCsi
	phaseUtf8
)

// csiBufferCap bounds an accumulating CSI sequence; overflow flushes the
// buffered bytes as-is and returns to Normal.
const csiBufferCap = 30

// spinnerFrames is the rotating ASCII animation substituted for various
// "activity" glyphs.
var spinnerFrames = [4]byte{'-', '\\', '|', '/'}

// Filter holds the state machine's persistent state between Apply calls.
// The zero value is ready to use.
type Filter struct {
	phase        phase
	seq          []byte
	utfNeed      int
	spinnerPhase byte
}

// Apply runs in through the filter and returns the filtered bytes. The
// result is usually no longer than the input; a buffered escape sequence
// from an earlier call can spill into this one, in which case append
// grows the slice past its initial cap(in).
func (f *Filter) Apply(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		out = f.step(out, b)
	}
	return out
}

func (f *Filter) step(out []byte, b byte) []byte {
again:
	switch f.phase {
	case phaseNormal:
		switch {
		case b == 0x1B:
			f.seq = append(f.seq[:0], b)
			f.phase = phaseEsc
		case b < 0x80:
			out = append(out, b)
		case isUTF8Lead2(b):
			f.seq = append(f.seq[:0], b)
			f.utfNeed = 1
			f.phase = phaseUtf8
		case isUTF8Lead3(b):
			f.seq = append(f.seq[:0], b)
			f.utfNeed = 2
			f.phase = phaseUtf8
		case isUTF8Lead4(b):
			f.seq = append(f.seq[:0], b)
			f.utfNeed = 3
			f.phase = phaseUtf8
		default:
			out = append(out, '?')
		}

	case phaseEsc:
		f.seq = append(f.seq, b)
		if b == '[' {
			f.phase = phaseCsi
		} else {
			// Not a CSI introducer: the escape ends here, and the whole
			// buffered sequence, this byte included, passes through as
			// literal data.
			out = append(out, f.seq...)
			f.seq = f.seq[:0]
			f.phase = phaseNormal
		}

	case phaseCsi:
		switch {
		case b <= 0x1F:
			// C0 control bytes execute immediately so in-band BS/CR/LF
			// survive even mid-sequence.
			out = append(out, b)
		case b >= 0x40 && b <= 0x7E:
			if b != 'm' {
				out = append(out, f.seq...)
				out = append(out, b)
			}
			// b == 'm': SGR elision, the whole buffered CSI is dropped.
			f.seq = f.seq[:0]
			f.phase = phaseNormal
		default:
			if len(f.seq) >= csiBufferCap {
				out = append(out, f.seq...)
				f.seq = f.seq[:0]
				f.phase = phaseNormal
			} else {
				f.seq = append(f.seq, b)
			}
		}

	case phaseUtf8:
		if b >= 0x80 && b <= 0xBF {
			f.seq = append(f.seq, b)
			f.utfNeed--
			if f.utfNeed == 0 {
				out = append(out, f.transliterate(f.seq))
				f.seq = f.seq[:0]
				f.phase = phaseNormal
			}
		} else {
			out = append(out, '?')
			f.seq = f.seq[:0]
			f.utfNeed = 0
			f.phase = phaseNormal
			goto again
		}
	}
	return out
}

func isUTF8Lead2(b byte) bool { return b&0xE0 == 0xC0 }
func isUTF8Lead3(b byte) bool { return b&0xF0 == 0xE0 }
func isUTF8Lead4(b byte) bool { return b&0xF8 == 0xF0 }

// nextSpinner returns the current spinner frame and advances the shared
// phase, so the animation looks smooth across many substitutions spread
// over many packets. This is the only stateful side effect of
// transliteration.
func (f *Filter) nextSpinner() byte {
	c := spinnerFrames[f.spinnerPhase%4]
	f.spinnerPhase++
	return c
}

// transliterate maps a complete multi-byte UTF-8 sequence to its ASCII
// substitute. 2-byte sequences other than C2 xx, 3-byte sequences not led
// by E2, and 4-byte sequences other than F0 9F xx xx map to '?', matching
// the invalid-lead default used elsewhere in this filter; an E2 sequence
// takes its group's default ('*' outside the listed groups).
func (f *Filter) transliterate(seq []byte) byte {
	switch len(seq) {
	case 2:
		return f.transliterate2(seq[0], seq[1])
	case 3:
		return f.transliterate3(seq[0], seq[1], seq[2])
	case 4:
		return f.transliterate4(seq[0], seq[1], seq[2], seq[3])
	default:
		return '?'
	}
}

func (f *Filter) transliterate2(b0, b1 byte) byte {
	if b0 != 0xC2 {
		return '?'
	}
	switch b1 {
	case 0xA0:
		return ' '
	case 0xB7:
		return f.nextSpinner()
	default:
		return '?'
	}
}

func (f *Filter) transliterate3(b0, b1, b2 byte) byte {
	if b0 != 0xE2 {
		return '?'
	}
	switch b1 {
	case 0x94: // box drawing: light/heavy lines
		switch {
		case b2 == 0x82 || b2 == 0x83:
			return '|'
		case b2 == 0x80 || b2 == 0x81 || b2 == 0x84:
			return '-'
		default:
			return '+'
		}
	case 0x95: // box drawing: double lines
		if b2 >= 0x90 && b2 <= 0x94 {
			return '='
		}
		return '+'
	case 0x86: // arrows
		switch b2 {
		case 0x90:
			return '<'
		case 0x91:
			return '^'
		case 0x92:
			return '>'
		case 0x93:
			return 'v'
		default:
			return '>'
		}
	case 0x96: // geometric shapes
		switch {
		case b2 >= 0xB2 && b2 <= 0xB5:
			return '^'
		case b2 >= 0xB6 && b2 <= 0xB9:
			return '>'
		case b2 >= 0xBA && b2 <= 0xBD:
			return 'v'
		default:
			return '*'
		}
	case 0x97: // geometric shapes extended
		switch {
		case b2 >= 0x80 && b2 <= 0x83:
			return '<'
		case b2 == 0x8F:
			return f.nextSpinner()
		case b2 == 0x8B:
			return 'o'
		case b2 == 0x86 || b2 == 0x87:
			return '*'
		default:
			return '*'
		}
	case 0x9C: // dingbats
		switch {
		case b2 == 0x93 || b2 == 0x94 || b2 == 0x85:
			return '+'
		case b2 == 0x97 || b2 == 0x98:
			return 'x'
		case b2 == 0xA2 || b2 == 0xB3 || b2 == 0xB6 || b2 == 0xBB || b2 == 0xBD:
			return f.nextSpinner()
		default:
			return '*'
		}
	case 0x9D: // dingbats: crosses
		if b2 == 0x8C {
			return 'x'
		}
		return '*'
	case 0x9E: // dingbats: arrows
		return '>'
	case 0x88: // mathematical operators
		if b2 == 0xB4 {
			return f.nextSpinner()
		}
		return '*'
	case 0x8C, 0x8D, 0x8E, 0x8F: // enclosed alphanumerics / misc technical
		return '>'
	case 0x80: // general punctuation
		switch b2 {
		case 0xA2:
			return '*'
		case 0xA3:
			return '>'
		case 0x93, 0x94, 0x95:
			return '-'
		case 0x98, 0x99:
			return '\''
		case 0x9C, 0x9D:
			return '"'
		case 0xA6:
			return '.'
		case 0xB9:
			return '<'
		case 0xBA:
			return '>'
		default:
			return ' '
		}
	default:
		return '*'
	}
}

func (f *Filter) transliterate4(b0, b1, _, _ byte) byte {
	if b0 == 0xF0 && b1 == 0x9F {
		return '*'
	}
	return '?'
}
