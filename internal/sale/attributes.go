package sale

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Keys read from the ticket line attribute blob.
const (
	attrProductName   = "product.name"
	attrTaxCategoryID = "product.taxcategoryid"
)

// properties is the Java properties XML format uniCenta stores in
// ticketlines.attributes:
//
//	<properties>
//	  <entry key="product.name">Coffee</entry>
//	  <entry key="product.taxcategoryid">001</entry>
//	</properties>
type properties struct {
	XMLName xml.Name `xml:"properties"`
	Entries []struct {
		Key   string `xml:"key,attr"`
		Value string `xml:",chardata"`
	} `xml:"entry"`
}

// parseAttributes decodes a ticket line attribute blob into a key/value map.
// An empty blob yields an empty map.
func parseAttributes(blob []byte) (map[string]string, error) {
	out := make(map[string]string)
	if len(strings.TrimSpace(string(blob))) == 0 {
		return out, nil
	}

	var props properties
	if err := xml.Unmarshal(blob, &props); err != nil {
		return nil, fmt.Errorf("failed to parse line attributes: %w", err)
	}
	for _, e := range props.Entries {
		out[e.Key] = strings.TrimSpace(e.Value)
	}
	return out, nil
}
