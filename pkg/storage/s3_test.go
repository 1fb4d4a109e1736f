package storage

import (
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestImageHelpers(t *testing.T) {
	convey.Convey("Image types are validated by content type or extension", t, func() {
		convey.So(ValidateImageType("image/PNG", "x"), convey.ShouldBeTrue)
		convey.So(ValidateImageType("", "team.JPEG"), convey.ShouldBeTrue)
		convey.So(ValidateImageType("video/mp4", "clip.mp4"), convey.ShouldBeFalse)
		convey.So(ContentTypeForFilename("a.webp"), convey.ShouldEqual, "image/webp")
	})

	convey.Convey("Image keys live under the event folder", t, func() {
		key := ImageKey("abc", "photo.PNG")
		convey.So(strings.HasPrefix(key, "events/abc/"), convey.ShouldBeTrue)
		convey.So(strings.HasSuffix(key, ".png"), convey.ShouldBeTrue)
		convey.So(ImageKey("", "x"), convey.ShouldStartWith, "events/unassigned/")
	})

	convey.Convey("Public URLs round-trip to keys", t, func() {
		s := &S3{cfg: S3Config{Region: "eu-west-2", ImagesBucket: "club-images"}}
		u := s.PublicObjectURL("events/abc/1.jpg")
		convey.So(u, convey.ShouldEqual, "https://club-images.s3.eu-west-2.amazonaws.com/events/abc/1.jpg")
		key, ok := s.KeyFromURL(u)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(key, convey.ShouldEqual, "events/abc/1.jpg")

		_, ok = s.KeyFromURL("https://example.com/other.jpg")
		convey.So(ok, convey.ShouldBeFalse)

		cdn := &S3{cfg: S3Config{PublicBaseURL: "https://img.club.test/"}}
		key, ok = cdn.KeyFromURL(cdn.PublicObjectURL("events/x.png"))
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(key, convey.ShouldEqual, "events/x.png")
	})
}
