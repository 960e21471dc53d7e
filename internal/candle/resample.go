package candle

import (
	"main/internal/model"
	"main/internal/model/enum"
)

// Resample aggregates a sorted series into coarser fixed buckets:
// open=first, high=max, low=min, close=last, volume=sum. Buckets missing
// source candles are dropped as incomplete. bucket is in seconds and must
// be a multiple of the source timeframe.
func Resample(in []model.Candle, bucket int) []model.Candle {
	if len(in) == 0 || bucket <= 0 {
		return nil
	}

	srcTF := in[0].Timeframe
	if srcTF <= 0 || bucket%srcTF != 0 {
		return nil
	}
	want := bucket / srcTF

	var (
		out   []model.Candle
		acc   model.Candle
		count int
		start int64 = -1
	)

	flush := func() {
		if count == want {
			out = append(out, acc)
		}
		count = 0
	}

	for _, cd := range in {
		bucketStart := cd.Timestamp - cd.Timestamp%int64(bucket)
		if bucketStart != start {
			flush()
			start = bucketStart
			acc = model.Candle{
				Timestamp:  bucketStart,
				Open:       cd.Open,
				High:       cd.High,
				Low:        cd.Low,
				Close:      cd.Close,
				Timeframe:  bucket,
				Volume:     cd.Volume,
				Provenance: enum.ProvenanceSynthetic,
			}
			count = 1
			continue
		}

		if cd.High > acc.High {
			acc.High = cd.High
		}
		if cd.Low < acc.Low {
			acc.Low = cd.Low
		}
		acc.Close = cd.Close
		acc.Volume += cd.Volume
		count++
	}
	flush()

	return out
}

// aggregate folds a non-empty run of candles into one synthetic candle
// spanning them, keyed by the first candle's timestamp.
func aggregate(run []model.Candle, timeframe int) model.Candle {
	acc := model.Candle{
		Timestamp:  run[0].Timestamp,
		Open:       run[0].Open,
		High:       run[0].High,
		Low:        run[0].Low,
		Close:      run[0].Close,
		Timeframe:  timeframe,
		Volume:     run[0].Volume,
		Provenance: enum.ProvenanceSynthetic,
	}
	for _, cd := range run[1:] {
		if cd.High > acc.High {
			acc.High = cd.High
		}
		if cd.Low < acc.Low {
			acc.Low = cd.Low
		}
		acc.Close = cd.Close
		acc.Volume += cd.Volume
	}
	return acc
}
