package results

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Struct definitions for the JUnit XML schema - see https://github.com/jstemmer/go-junit-report

type jUnitXMLDocument struct {
	XMLName xml.Name            `xml:"testsuites"`
	Suites  []jUnitXMLTestSuite `xml:"testsuite"`
}

type jUnitXMLTestSuite struct {
	XMLName    xml.Name           `xml:"testsuite"`
	Tests      int                `xml:"tests,attr"`
	Failures   int                `xml:"failures,attr"`
	Time       string             `xml:"time,attr"`
	Name       string             `xml:"name,attr"`
	Properties []jUnitXMLProperty `xml:"properties>property,omitempty"`
	TestCases  []jUnitXMLTestCase `xml:"testcase"`
}

type jUnitXMLTestCase struct {
	XMLName   xml.Name         `xml:"testcase"`
	Classname string           `xml:"classname,attr"`
	Name      string           `xml:"name,attr"`
	Time      string           `xml:"time,attr"`
	Failure   *jUnitXMLFailure `xml:"failure,omitempty"`
}

type jUnitXMLProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type jUnitXMLFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// WriteJUnitFile renders a finished invocation as JUnit XML, one testsuite
// per module, so the results can feed any CI system that understands the
// schema.
func WriteJUnitFile(filePath string, inv *Invocation) error {
	var doc jUnitXMLDocument

	for _, module := range inv.Modules {
		suite := jUnitXMLTestSuite{
			Name: fmt.Sprintf("%s: %s", inv.Name, module.Name),
			Properties: []jUnitXMLProperty{
				{Name: "invocation", Value: inv.Name},
			},
		}
		for _, run := range module.Runs {
			for _, test := range run.Tests {
				testCase := jUnitXMLTestCase{
					Classname: module.Name,
					Name:      run.Name + "/" + test.Name,
					Time:      jUnitDurationString(test.EndTime.Sub(test.StartTime)),
				}
				suite.Tests++
				if test.Failed() {
					suite.Failures++
					testCase.Failure = &jUnitXMLFailure{
						Message:  strings.Join(test.FailureMessages, "\n"),
						Contents: metricsString(test.Metrics),
					}
				}
				suite.TestCases = append(suite.TestCases, testCase)
			}
		}
		suite.Time = jUnitDurationString(module.EndTime.Sub(module.StartTime))
		doc.Suites = append(doc.Suites, suite)
	}

	bytes, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	bytes = append(bytes, '\n')

	return os.WriteFile(filePath, bytes, 0644) //nolint:gosec
}

func metricsString(metrics map[string]string) string {
	if len(metrics) == 0 {
		return ""
	}
	keys := maps.Keys(metrics)
	slices.Sort(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+metrics[k])
	}
	return strings.Join(lines, "\n")
}

func jUnitDurationString(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.3f", d.Seconds())
}
