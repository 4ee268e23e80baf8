package geojson_test

import (
	"fmt"
	"log"

	"github.com/robert-malhotra/cohdet/pkg/geojson"
)

func ExampleParseFootprint() {
	fp, err := geojson.ParseFootprint("Intersects(POLYGON((55.1 -20.7,55.9 -20.7,55.9 -21.4,55.1 -21.4,55.1 -20.7)))")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(fp.WKT())
	fmt.Println(fp.BBox())
	// Output:
	// POLYGON((55.1 -20.7,55.9 -20.7,55.9 -21.4,55.1 -21.4,55.1 -20.7))
	// [55.1 -21.4 55.9 -20.7]
}
