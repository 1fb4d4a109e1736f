package utils

import (
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminPassword(t *testing.T) {
	AdminPasswordCost = bcrypt.MinCost

	convey.Convey("Given a hashed admin password", t, func() {
		hash, err := HashAdminPassword("matchday-2026")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("The hash is not the plain text", func() {
			convey.So(hash, convey.ShouldNotEqual, "matchday-2026")
			convey.So(hash, convey.ShouldStartWith, "$2")
		})

		convey.Convey("Only the right password matches", func() {
			convey.So(CheckAdminPassword("matchday-2026", hash), convey.ShouldBeTrue)
			convey.So(CheckAdminPassword("matchday-2025", hash), convey.ShouldBeFalse)
		})
	})

	convey.Convey("Blank passwords and hashes are refused", t, func() {
		_, err := HashAdminPassword("")
		convey.So(err, convey.ShouldEqual, ErrEmptyPassword)
		convey.So(CheckAdminPassword("anything", ""), convey.ShouldBeFalse)
	})

	convey.Convey("Passwords past the bcrypt limit are refused", t, func() {
		_, err := HashAdminPassword(strings.Repeat("x", 73))
		convey.So(err, convey.ShouldNotBeNil)
	})
}
