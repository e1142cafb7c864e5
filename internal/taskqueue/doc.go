// Package taskqueue runs background work on a fixed worker pool with two
// priority bands. Interactive tasks are preferred at scheduling time; an
// ambient task already executing is never cancelled mid-flight. Each band has
// a bounded pending depth, so producers block rather than lose work when the
// queue is saturated.
package taskqueue
