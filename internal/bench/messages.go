package bench

import (
	"errors"
	"fmt"

	"github.com/proteobench/benchcore/internal/util"
)

// UserMessage turns a pipeline error into text for the person running
// the benchmark. The kind picks the advice; the cause is appended.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var advice string
	switch util.KindOf(err) {
	case util.KindParse:
		advice = "The input file could not be read. Check that it is the output of the selected tool."
	case util.KindParseSettings:
		advice = "The parse settings for this module are missing or invalid."
	case util.KindConvertStandardFormat:
		advice = "The input does not match what the selected tool is expected to produce, for example a required column or raw file is missing."
	case util.KindIntermediateFormat:
		advice = "Scoring the input failed."
	case util.KindQuantification:
		advice = "No metrics could be computed because no features survived filtering."
	case util.KindDatapointGeneration:
		advice = "The benchmark result could not be packaged. Check the run metadata."
	case util.KindDatapointAppend:
		advice = "The result could not be added to the archive."
	case util.KindSubmission:
		if errors.Is(err, util.ErrDuplicate) {
			advice = "This run was already submitted."
		} else {
			advice = "Submitting the result failed. It is kept locally and can be submitted again."
		}
	case util.KindPartialInput:
		advice = "Only one file of a paired output was given."
	default:
		if errors.Is(err, util.ErrUnsupported) {
			advice = "The selected input format is not supported."
		}
	}

	if advice == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s (%v)", advice, err)
}
