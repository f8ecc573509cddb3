// Package pipeline はプロデューサ・コンシューマ・パイプラインの実行エンジンを提供する。
//
// Engineはキュー、ログリスナー、デッドレター、Producer、コンシューマ
// プールを組み立て、決まった順序で結合する。
//
//  1. ログファイルを開き、リスナーを起動
//  2. キューとデッドレターの書き込み先を用意
//  3. コンシューマを起動し、Producerを起動
//  4. Producer → コンシューマ → デッドレター → ログリスナーの順に終了を待つ
//
// シャットダウンはCoordinator経由で要求する。シグナル、HTTP API、
// Triggerのどれから来ても同じフラグが立つ。
//
// # プリセット
//
// - basic: 10アイテム、シグナルなし
// - terminate: 5アイテム後にterminate
// - interrupt: 5アイテム後にinterrupt
// - quick: 短い待ち時間で25アイテム
// - demo: 250アイテム、既定の待ち時間
//
// # 使用例
//
//	engine := pipeline.New(pipeline.InterruptPreset())
//	engine.Coordinator().Notify(ctx)
//	defer engine.Coordinator().Stop()
//
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package pipeline
