package database

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestMigrationNames(t *testing.T) {
	convey.Convey("Embedded migrations are found in order", t, func() {
		names, err := migrationNames()
		convey.So(err, convey.ShouldBeNil)
		convey.So(names, convey.ShouldNotBeEmpty)
		convey.So(names[0], convey.ShouldEqual, "001_schema.sql")
	})
}
