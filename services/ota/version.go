package ota

// CompareVersions orders dotted major.minor.patch strings. Each component
// is its leading decimal digits; parsing stops at the first component
// without digits or the first separator that is not '.'. Missing components
// count as 0. Returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	va, vb := parseVersion(a), parseVersion(b)
	for i := range va {
		switch {
		case va[i] < vb[i]:
			return -1
		case va[i] > vb[i]:
			return 1
		}
	}
	return 0
}

func parseVersion(s string) [3]int {
	var v [3]int
	i := 0
	for c := 0; c < 3; c++ {
		start := i
		n := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			if n < 1<<24 {
				n = n*10 + int(s[i]-'0')
			}
			i++
		}
		if i == start {
			break
		}
		v[c] = n
		if i >= len(s) || s[i] != '.' {
			break
		}
		i++
	}
	return v
}
