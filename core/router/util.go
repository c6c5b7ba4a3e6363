package router

func stringArrayToByte2D(in []string) (out [][]byte) {
	for _, str := range in {
		out = append(out, []byte(str))
	}
	return
}

func byte2DToStringArray(in [][]byte) (out []string) {
	for _, bytes := range in {
		out = append(out, string(bytes))
	}
	return
}
