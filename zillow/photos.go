package zillow

import (
	"regexp"
)

var photoSizePattern = regexp.MustCompile(`-cc_ft_\d+`)

func upgradePhotoURL(href string) string {
	if href == "" {
		return href
	}
	return photoSizePattern.ReplaceAllString(href, "-cc_ft_1536")
}
