package sal

import "sync"

//Task is one unit of work executed by the pool.
type Task interface {
	Run()
}

//Pool distributes tasks over a fixed number of worker goroutines.
type Pool struct {
	tasks chan Task
	wg    sync.WaitGroup
}

//NewPool starts threadsNum workers consuming from the task queue.
func NewPool(threadsNum int) *Pool {
	pool := &Pool{tasks: make(chan Task, threadsNum)}
	for p := 0; p < threadsNum; p++ {
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			for task := range pool.tasks {
				task.Run()
			}
		}()
	}
	return pool
}

//AddTask enqueues one task. Blocks when all workers are busy and the queue is full.
func (pool *Pool) AddTask(task Task) {
	pool.tasks <- task
}

//Close signals that no more tasks will be added.
func (pool *Pool) Close() {
	close(pool.tasks)
}

//WaitAll blocks until every queued task has finished.
func (pool *Pool) WaitAll() {
	pool.wg.Wait()
}
