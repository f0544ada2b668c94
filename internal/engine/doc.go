// Package engine builds time-slot schedules for tasks under hard and soft
// constraints.
//
// A run validates the request, orders the tasks by composite priority,
// places each one greedily on its best feasible slot and, for the optimal
// and balanced algorithms, refines the result with simulated annealing
// under an iteration and wall-clock budget. The package performs no I/O;
// callers hand in fully materialized records and receive a model.Schedule.
package engine
