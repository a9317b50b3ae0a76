package imageresolve

import (
	"net/url"
	"strings"
)

// faceSizes CDN 尺寸，从高到低；空串为原图路径
var faceSizes = []string{"420x420", "300x170", ""}

// PlayerFaceCandidates 头像走公开 CDN
func PlayerFaceCandidates(cdnBase string) CandidateBuilder {
	base := strings.TrimRight(cdnBase, "/")
	return func(id string) []string {
		seg := "c" + url.PathEscape(imageNumber(id))
		out := make([]string, 0, len(faceSizes))
		for _, size := range faceSizes {
			if size == "" {
				out = append(out, base+"/i1/"+seg+"/i.jpg")
				continue
			}
			out = append(out, base+"/"+size+"/i1/"+seg+"/i.jpg")
		}
		return out
	}
}

// NewsCoverCandidates 新闻封面走需要凭据的 API
func NewsCoverCandidates(apiBase string) CandidateBuilder {
	base := strings.TrimRight(apiBase, "/")
	return func(id string) []string {
		p := base + "/img/v1/i1/c" + url.PathEscape(imageNumber(id)) + "/i.jpg"
		return []string{p + "?p=de&d=high", p + "?p=de"}
	}
}

// imageNumber 接受 "12345" 和 "c12345" 两种写法
func imageNumber(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 1 && id[0] == 'c' && isDigits(id[1:]) {
		return id[1:]
	}
	return id
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
