package executor

// partition splits files into command lines of cmd+files. Each line stays
// under maxLength bytes and, when jobs > 1, files are spread so every job gets
// work. A single file that alone exceeds the limit still gets its own line.
func partition(cmd, files []string, jobs, maxLength int) [][]string {
	if len(files) == 0 {
		return [][]string{append([]string(nil), cmd...)}
	}

	maxArgs := len(files)
	if jobs > 1 {
		maxArgs = (len(files) + jobs - 1) / jobs
	}

	base := argLength(cmd)
	var (
		out     [][]string
		current []string
		length  int
	)
	flush := func() {
		if len(current) > 0 {
			line := make([]string, 0, len(cmd)+len(current))
			line = append(line, cmd...)
			out = append(out, append(line, current...))
			current = nil
			length = 0
		}
	}

	for _, f := range files {
		size := len(f) + 1
		if len(current) > 0 && (base+length+size > maxLength || len(current) >= maxArgs) {
			flush()
		}
		current = append(current, f)
		length += size
	}
	flush()
	return out
}

func argLength(args []string) int {
	n := 0
	for _, a := range args {
		n += len(a) + 1
	}
	return n
}
