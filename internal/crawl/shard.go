package crawl

// YearRange lists the inclusive [start, end] years newest first, so
// fresh filings land before historical backfill.
func YearRange(start, end int) []int {
	if start > end {
		return nil
	}
	years := make([]int, 0, end-start+1)
	for y := end; y >= start; y-- {
		years = append(years, y)
	}
	return years
}

// ShardYears splits years round-robin across count workers and returns
// the slice for worker index. Every year lands in exactly one shard and
// shard sizes differ by at most one.
func ShardYears(years []int, index, count int) []int {
	if count <= 0 || index < 0 || index >= count {
		return nil
	}
	var shard []int
	for i := index; i < len(years); i += count {
		shard = append(shard, years[i])
	}
	return shard
}
