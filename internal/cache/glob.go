package cache

// Match reports whether key matches the redis KEYS/SCAN glob pattern.
// Supported: '*', '?', '[abc]', '[^abc]', '[a-z]' and '\' escapes.
// Unlike path.Match, '*' also matches ':' and '/'.
func Match(pattern, key string) bool {
	return match(pattern, key)
}

func match(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 1 && p[1] == '*' {
				p = p[1:]
			}

			if len(p) == 1 {
				return true
			}

			for i := 0; i <= len(s); i++ {
				if match(p[1:], s[i:]) {
					return true
				}
			}

			return false
		case '?':
			if len(s) == 0 {
				return false
			}

			s = s[1:]
			p = p[1:]
		case '[':
			if len(s) == 0 {
				return false
			}

			rest, ok := matchClass(p[1:], s[0])
			if !ok {
				return false
			}

			s = s[1:]
			p = rest
		case '\\':
			if len(p) >= 2 {
				p = p[1:]
			}

			fallthrough
		default:
			if len(s) == 0 || p[0] != s[0] {
				return false
			}

			s = s[1:]
			p = p[1:]
		}
	}

	return len(s) == 0
}

// matchClass evaluates a bracket expression starting after '['.
// It returns the pattern after the closing ']' and whether c is in the class.
func matchClass(p string, c byte) (string, bool) {
	negate := false
	if len(p) > 0 && p[0] == '^' {
		negate = true
		p = p[1:]
	}

	matched := false

	for {
		if len(p) == 0 {
			// unterminated class, redis treats the end of pattern as ']'
			break
		}

		if p[0] == ']' {
			p = p[1:]

			break
		}

		switch {
		case p[0] == '\\' && len(p) >= 2:
			if p[1] == c {
				matched = true
			}

			p = p[2:]
		case len(p) >= 3 && p[1] == '-' && p[2] != ']':
			lo, hi := p[0], p[2]
			if lo > hi {
				lo, hi = hi, lo
			}

			if c >= lo && c <= hi {
				matched = true
			}

			p = p[3:]
		default:
			if p[0] == c {
				matched = true
			}

			p = p[1:]
		}
	}

	return p, matched != negate
}

// escapeGlob quotes glob metacharacters so s matches only itself.
func escapeGlob(s string) string {
	var out []byte

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}

		out = append(out, s[i])
	}

	return string(out)
}
