// Package datapoint holds leaderboard records: the metrics of one
// benchmark run at every cutoff plus the metadata the run was made with,
// keyed by the hash of its intermediate table.
package datapoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/proteobench/benchcore/internal/meta"
	"github.com/proteobench/benchcore/internal/score"
	"github.com/proteobench/benchcore/internal/util"
)

// Version is recorded in every datapoint built by this process
var Version = "dev"

// Markers for the old_new field
const (
	MarkNew = "new"
	MarkOld = "old"
)

// Datapoint is one leaderboard row. Fields mirror the public archive;
// keys this version does not know are kept in Extra and written back.
type Datapoint struct {
	ID                     string  `json:"id"`
	SoftwareName           Text    `json:"software_name"`
	SoftwareVersion        Text    `json:"software_version"`
	SearchEngine           Text    `json:"search_engine"`
	SearchEngineVersion    Text    `json:"search_engine_version"`
	IdentFDRPSM            Number  `json:"ident_fdr_psm"`
	IdentFDRPeptide        Number  `json:"ident_fdr_peptide"`
	IdentFDRProtein        Number  `json:"ident_fdr_protein"`
	EnableMBR              Flag    `json:"enable_match_between_runs"`
	PrecursorMassTolerance Text    `json:"precursor_mass_tolerance"`
	FragmentMassTolerance  Text    `json:"fragment_mass_tolerance"`
	Enzyme                 Text    `json:"enzyme"`
	AllowedMiscleavages    Number  `json:"allowed_miscleavages"`
	MinPeptideLength       Number  `json:"min_peptide_length"`
	MaxPeptideLength       Number  `json:"max_peptide_length"`
	IsTemporary            Flag    `json:"is_temporary"`
	IntermediateHash       string  `json:"intermediate_hash"`
	Results                Results `json:"results"`

	MedianAbsEpsilonGlobal    Number `json:"median_abs_epsilon_global"`
	MeanAbsEpsilonGlobal      Number `json:"mean_abs_epsilon_global"`
	MedianAbsEpsilonEqSpecies Number `json:"median_abs_epsilon_eq_species"`
	MeanAbsEpsilonEqSpecies   Number `json:"mean_abs_epsilon_eq_species"`
	NrPrec                    Number `json:"nr_prec"`

	Comments           Text   `json:"comments"`
	SubmissionComments Text   `json:"submission_comments,omitempty"`
	ProteobenchVersion Text   `json:"proteobench_version"`
	OldNew             string `json:"old_new,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Results maps a cutoff to its summary metrics
type Results map[int]score.Metrics

func (r Results) MarshalJSON() ([]byte, error) {
	if r == nil {
		return jsonNull, nil
	}
	out := make(map[string]map[string]float64, len(r))
	for k, m := range r {
		vals := make(map[string]float64, len(m))
		for name, v := range m {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			vals[name] = v
		}
		out[strconv.Itoa(k)] = vals
	}
	return json.Marshal(out)
}

// UnmarshalJSON skips null metrics and cutoff keys that are not integers
func (r *Results) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		*r = nil
		return nil
	}
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("failed to decode results: %w", err)
	}

	out := make(Results, len(raw))
	for key, vals := range raw {
		k, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			util.DebugLog("Skipping results entry with cutoff %q", key)
			continue
		}
		m := make(score.Metrics, len(vals))
		for name, v := range vals {
			if v == nil {
				continue
			}
			f, err := cast.ToFloat64E(v)
			if err != nil {
				continue
			}
			m[name] = f
		}
		out[k] = m
	}
	*r = out
	return nil
}

// Cutoffs returns the cutoffs present in the results, ascending
func (r Results) Cutoffs() []int {
	ks := make([]int, 0, len(r))
	for k := range r {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	return ks
}

type plain Datapoint

var knownKeys = jsonKeys(reflect.TypeOf(plain{}))

func jsonKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}

func (d *Datapoint) UnmarshalJSON(b []byte) error {
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for key, raw := range all {
		if knownKeys[key] {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return err
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[key] = buf.Bytes()
	}
	*d = Datapoint(p)
	return nil
}

func (d Datapoint) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(plain(d))
	if err != nil || len(d.Extra) == 0 {
		return b, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for key, raw := range d.Extra {
		if _, ok := all[key]; !ok {
			all[key] = raw
		}
	}
	return json.Marshal(all)
}

// Timestamp formats t as YYYYMMDD_HHMMSS_ffffff
func Timestamp(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
}

// Build bundles the metrics of in with the run metadata. Metrics are
// computed for every cutoff; the default cutoff is also copied to the
// top-level fields the leaderboard sorts on.
func Build(in *score.Intermediate, tool string, md *meta.UserMetadata, defaultCutoff int, now time.Time) (*Datapoint, error) {
	const op = "build datapoint"
	if in == nil {
		return nil, util.Errorf(util.KindDatapointGeneration, op, "intermediate", "no intermediate table")
	}
	if md == nil {
		return nil, util.Errorf(util.KindDatapointGeneration, op, "metadata", "no user metadata")
	}
	if defaultCutoff < score.MinCutoff || defaultCutoff > score.MaxCutoff {
		return nil, util.Errorf(util.KindDatapointGeneration, op, "cutoff",
			"default cutoff %d outside %d..%d", defaultCutoff, score.MinCutoff, score.MaxCutoff)
	}

	hash, err := in.Hash()
	if err != nil {
		return nil, util.NewKindError(util.KindDatapointGeneration, op, "intermediate_hash", err)
	}

	version := md.SoftwareVersion
	dp := &Datapoint{
		ID:                     strings.Join([]string{tool, version, Timestamp(now)}, "_"),
		SoftwareName:           Text(tool),
		SoftwareVersion:        Text(version),
		SearchEngine:           Text(md.SearchEngine),
		SearchEngineVersion:    Text(md.SearchEngineVersion),
		IdentFDRPSM:            NumFloat(md.IdentFDRPSM),
		IdentFDRPeptide:        NumFloat(md.IdentFDRPeptide),
		IdentFDRProtein:        NumFloat(md.IdentFDRProtein),
		EnableMBR:              Flag(md.EnableMBR),
		PrecursorMassTolerance: Text(md.PrecursorMassTolerance),
		FragmentMassTolerance:  Text(md.FragmentMassTolerance),
		Enzyme:                 Text(md.Enzyme),
		AllowedMiscleavages:    NumInt(md.AllowedMiscleavages),
		MinPeptideLength:       NumInt(md.MinPeptideLength),
		MaxPeptideLength:       NumInt(md.MaxPeptideLength),
		IsTemporary:            true,
		IntermediateHash:       hash,
		Results:                Results(score.AllMetrics(in)),
		Comments:               Text(md.Comments),
		SubmissionComments:     Text(md.SubmissionComments),
		ProteobenchVersion:     Text(Version),
	}

	def := dp.Results[defaultCutoff]
	dp.MedianAbsEpsilonGlobal = Num(def[score.MetricMedianAbsEpsilonGlobal])
	dp.MeanAbsEpsilonGlobal = Num(def[score.MetricMeanAbsEpsilonGlobal])
	dp.MedianAbsEpsilonEqSpecies = Num(def[score.MetricMedianAbsEpsilonEqSpecies])
	dp.MeanAbsEpsilonEqSpecies = Num(def[score.MetricMeanAbsEpsilonEqSpecies])
	dp.NrPrec = Num(def[score.MetricNrPrec])

	util.InfoLog("Assigned id %s to this run", dp.ID)
	return dp, nil
}

// Parse decodes one datapoint
func Parse(b []byte) (*Datapoint, error) {
	var dp Datapoint
	if err := json.Unmarshal(b, &dp); err != nil {
		return nil, fmt.Errorf("failed to decode datapoint: %w", err)
	}
	if dp.IntermediateHash == "" {
		return nil, fmt.Errorf("datapoint %q has no intermediate_hash: %w", dp.ID, util.ErrInvalidConfig)
	}
	return &dp, nil
}

// Encode renders dp as indented JSON, the layout of the per-hash files
// in the public archive
func (d *Datapoint) Encode() ([]byte, error) {
	b, err := json.MarshalIndent(d, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode datapoint %s: %w", d.ID, err)
	}
	return b, nil
}

// FileName is the archive file holding dp
func (d *Datapoint) FileName() string {
	return d.IntermediateHash + ".json"
}

// Clone returns a deep copy
func (d *Datapoint) Clone() *Datapoint {
	c := *d
	if d.Results != nil {
		c.Results = make(Results, len(d.Results))
		for k, m := range d.Results {
			mc := make(score.Metrics, len(m))
			for name, v := range m {
				mc[name] = v
			}
			c.Results[k] = mc
		}
	}
	if d.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}
