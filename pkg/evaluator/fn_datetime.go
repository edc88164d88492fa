package evaluator

import (
	"context"
	"math"
	"time"

	"github.com/araddon/dateparse"

	"github.com/sandrolain/sonata/pkg/types"
)

// isoMillis is the timestamp layout produced by $now and $fromMillis.
const isoMillis = "2006-01-02T15:04:05.000Z"

// fnNow reports the instant the evaluation started, so repeated calls in
// one evaluation agree.
func fnNow(_ context.Context, c *Call, _ []types.Value) (types.Value, error) {
	return types.String(c.run.now.UTC().Format(isoMillis)), nil
}

func fnMillis(_ context.Context, c *Call, _ []types.Value) (types.Value, error) {
	return types.Number(c.run.now.UnixMilli()), nil
}

func fnFromMillis(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	n, ok := args[0].(types.Number)
	if !ok {
		return nil, nil
	}
	return formatMillis(int64(math.Floor(float64(n))), args[1], args[2])
}

// formatMillis renders ms with an optional picture and ±HHMM timezone. With
// neither it produces isoMillis.
func formatMillis(ms int64, picture, zone types.Value) (types.Value, error) {
	t := time.UnixMilli(ms).UTC()
	pic, hasPicture := str(picture)
	tz, hasZone := str(zone)
	if !hasPicture && !hasZone {
		return types.String(t.Format(isoMillis)), nil
	}
	if hasZone {
		loc, err := parseZone(tz)
		if err != nil {
			return nil, err
		}
		t = t.In(loc)
	}
	if !hasPicture {
		pic = isoPicture
	}
	parsed, err := parseDateTimePicture(pic)
	if err != nil {
		return nil, err
	}
	return types.String(parsed.format(t)), nil
}

// fnToMillis parses a timestamp, with a picture when one is given.
// Timestamps without a zone are UTC.
func fnToMillis(_ context.Context, c *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	if picture, ok := str(args[1]); ok {
		parsed, err := parseDateTimePicture(picture)
		if err != nil {
			return nil, err
		}
		t, ok, err := parsed.parse(s, c.run.now.UTC())
		if err != nil || !ok {
			return nil, err
		}
		return types.Number(t.UnixMilli()), nil
	}
	t, err := parseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return types.Number(t.UnixMilli()), nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, types.NewError(types.ErrDateParse, -1).WithValue(types.String(s)).WithCause(err)
	}
	return t, nil
}

// fnFormatDateTime reformats a timestamp: $fromMillis($toMillis(ts), picture, timezone).
func fnFormatDateTime(_ context.Context, _ *Call, args []types.Value) (types.Value, error) {
	s, ok := str(args[0])
	if !ok {
		return nil, nil
	}
	t, err := parseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return formatMillis(t.UnixMilli(), args[1], args[2])
}
