package jumptable

import "fmt"

// HashBucket holds the case labels whose constants share a hash value, in
// the order they were presented. A bucket is never empty.
type HashBucket struct {
	Labels []CaseLabel
}

// buildBuckets groups case labels by the hash of their constant. Distinct
// constants sharing a hash land in the same bucket and are resolved by the
// bucket's compare chain; an identical constant appearing twice means the
// caller violated the no-duplicate-constant precondition and is an
// internal-consistency fault.
func buildBuckets(labels []CaseLabel, hashFn HashFunc) (map[uint32]*HashBucket, error) {
	buckets := make(map[uint32]*HashBucket, len(labels))

	for _, label := range labels {
		h := hashFn(label.Const)
		bucket := buckets[h]
		if bucket == nil {
			bucket = &HashBucket{}
			buckets[h] = bucket
		}
		for _, existing := range bucket.Labels {
			if existing.Const == label.Const {
				return nil, fmt.Errorf("jumptable: duplicate case constant %s", label.Const)
			}
		}
		bucket.Labels = append(bucket.Labels, label)
	}

	return buckets, nil
}
